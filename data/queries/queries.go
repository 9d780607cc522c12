package queries

import (
	"embed"
	"fmt"
)

//go:embed insert/*.sql schema/*.sql select/*.sql update/*.sql
var Files embed.FS

// ^^^ the go:embed directive is used to embed the files in the queries package
// meaning on compile time it will convert the files to binary data and embed it in the queries package

type InsertQueries struct {
	Metadata      string
	SimulationRun string
}

type SchemaQueries struct {
	CreateTables string
}

type SelectQueries struct {
	MetaDataBySymbol            string
	MostRecentTimestampBySymbol string
	PriceHistory                string
	SimulationRuns              string
}

type UpdateQueries struct {
	SimulationRunSuccess string
	SimulationRunFailure string
}

type QueryHelperStruct struct {
	Insert InsertQueries
	Schema SchemaQueries
	Select SelectQueries
	Update UpdateQueries
}

var QueryHelper = QueryHelperStruct{
	Insert: InsertQueries{
		Metadata:      "insert/metadata.sql",
		SimulationRun: "insert/simulation_run.sql",
	},
	Schema: SchemaQueries{
		CreateTables: "schema/create_tables.sql",
	},
	Select: SelectQueries{
		MetaDataBySymbol:            "select/metadata_by_symbol.sql",
		MostRecentTimestampBySymbol: "select/most_recent_timestamp_by_symbol.sql",
		PriceHistory:                "select/price_history.sql",
		SimulationRuns:              "select/simulation_runs.sql",
	},
	Update: UpdateQueries{
		SimulationRunSuccess: "update/simulation_run_success.sql",
		SimulationRunFailure: "update/simulation_run_failure.sql",
	},
}

func Get(path string) string {
	content, err := Files.ReadFile(path)
	if err != nil {
		panic(fmt.Errorf("error reading query file: %w", err))
	}

	return string(content)
}
