package alpha_vantage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"maps"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/guregu/null/v6"

	c "mc.service/api"
	e "mc.service/data/extensions"
	m "mc.service/data/models"
)

// public
const (
	HostDefault = "www.alphavantage.co"
)

// private
const (
	defaultOutputSize = "full"
	defaultDataType   = "json"
	defaultTimeout    = time.Second * 30

	// api request elements
	query    = "query"
	symbol   = "symbol"
	function = "function"

	// response level keys that replace the payload on failure
	errorMessageKey = "Error Message"
	noteKey         = "Note"
	informationKey  = "Information"
	metaDataKey     = "Meta Data"
)

var (
	timeSeriesDateFormats = []string{
		"2006-01-02",
		"2006-01-02 15:04:05",
	}
)

type AlphaVantageClient struct {
	*c.Client
	Series TimeSeries
}

var _ c.HistoryProvider = (*AlphaVantageClient)(nil)

func GetClient(apiKey string, opts ...c.ClientOption) *AlphaVantageClient {
	return &AlphaVantageClient{
		Client: c.ClientFactory(HostDefault, apiKey, defaultTimeout, opts...),
		Series: TimeSeriesDailyAdjusted,
	}
}

func (avc *AlphaVantageClient) Name() string {
	return c.ProviderAlphaVantage
}

// GetDailyPriceHistory pulls the full daily history, oldest observation first.
// https://www.alphavantage.co/documentation/#dailyadj
func (avc *AlphaVantageClient) GetDailyPriceHistory(ctx context.Context, ticker string) (*m.PriceHistoryResult, error) {
	if avc == nil || avc.Client == nil {
		return nil, fmt.Errorf("alpha vantage client has not been set")
	}

	ticker = c.NormalizeSymbol(ticker)
	endpoint := avc.buildRequestPath(map[string]string{
		function: avc.Series.Function(),
		symbol:   ticker,
	})

	response, err := avc.Client.Connection.Request(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	if err := c.CheckStatus(response, ticker); err != nil {
		return nil, err
	}

	raw, err := parseRawJson(response.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", c.ErrProviderUnavailable, err)
	}

	if err := checkResponseMessages(raw, ticker); err != nil {
		return nil, err
	}

	metaData, timeZone, err := parseMetaData(raw)
	if err != nil {
		return nil, err
	}

	observations, err := parseTimeSeries(raw, avc.Series.TimeSeriesKey(), timeZone)
	if err != nil {
		return nil, err
	}
	if len(observations) == 0 {
		return nil, fmt.Errorf("%w: no observations returned for %s", c.ErrSymbolNotFound, ticker)
	}

	c.SortObservations(observations)
	return &m.PriceHistoryResult{
		Metadata:     metaData,
		Observations: observations,
	}, nil
}

func (avc *AlphaVantageClient) buildRequestPath(params map[string]string) *url.URL {
	endpoint := &url.URL{}
	endpoint.Path = query

	// base parameters
	query := endpoint.Query()
	query.Set("apikey", avc.Client.ApiKey)
	query.Set("datatype", defaultDataType)
	query.Set("outputsize", defaultOutputSize)

	for key, value := range params {
		query.Set(key, value)
	}

	endpoint.RawQuery = query.Encode()

	return endpoint
}

func parseRawJson(reader io.Reader) (raw map[string]json.RawMessage, err error) {
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("error unmarshaling response: %w", err)
	}

	return
}

// checkResponseMessages handles the 200 responses that carry an error instead of data
func checkResponseMessages(raw map[string]json.RawMessage, ticker string) error {
	readMessage := func(key string) (string, bool) {
		v, ok := raw[key]
		if !ok {
			return "", false
		}
		var msg string
		if err := json.Unmarshal(v, &msg); err != nil {
			return string(v), true
		}
		return msg, true
	}

	if msg, ok := readMessage(errorMessageKey); ok {
		return fmt.Errorf("%w: %s (%s)", c.ErrSymbolNotFound, ticker, msg)
	}
	if _, hasMeta := raw[metaDataKey]; hasMeta {
		return nil
	}
	for _, key := range []string{noteKey, informationKey} {
		if msg, ok := readMessage(key); ok {
			return fmt.Errorf("%w: %s", c.ErrProviderUnavailable, msg)
		}
	}
	return fmt.Errorf("%w: response for %s had no meta data", c.ErrProviderUnavailable, ticker)
}

func parseMetaData(raw map[string]json.RawMessage) (*m.PriceHistoryMetadata, *time.Location, error) {
	var metadataElements map[string]string
	if err := json.Unmarshal(raw[metaDataKey], &metadataElements); err != nil {
		return nil, nil, fmt.Errorf("error unmarshaling meta data: %w", err)
	}

	metaDataKeys := slices.Collect(maps.Keys(metadataElements))

	// parse symbol
	sf := func(s string) bool { return strings.HasSuffix(s, ". Symbol") }
	symbolKey, err := e.FilterSingle(metaDataKeys, sf)
	if err != nil {
		return nil, nil, fmt.Errorf("error extracting symbol for meta data")
	}

	// parse time zone
	tzf := func(s string) bool { return strings.HasSuffix(s, ". Time Zone") }
	timeZoneKey, err := e.FilterSingle(metaDataKeys, tzf)
	if err != nil {
		return nil, nil, fmt.Errorf("error extracting time zone for meta data")
	}

	timeZone, err := getTimeZone(metadataElements[timeZoneKey])
	if err != nil {
		return nil, nil, fmt.Errorf("error converting time zone key %s, to time.Location: %w", metadataElements[timeZoneKey], err)
	}

	// parse last refreshed
	lrf := func(s string) bool { return strings.HasSuffix(s, ". Last Refreshed") }
	lastRefreshedKey, err := e.FilterSingle(metaDataKeys, lrf)
	if err != nil {
		return nil, nil, fmt.Errorf("error extracting last refreshed date")
	}

	lastRefreshed, err := parseDate(metadataElements[lastRefreshedKey], timeZone)
	if err != nil {
		return nil, nil, fmt.Errorf("error parsing last refreshed date")
	}

	res := m.PriceHistoryMetadata{
		Symbol:        c.NormalizeSymbol(metadataElements[symbolKey]),
		Provider:      c.ProviderAlphaVantage,
		LastRefreshed: lastRefreshed,
	}

	return &res, timeZone, nil
}

func parseTimeSeries(raw map[string]json.RawMessage, key string, location *time.Location) ([]*m.PriceObservation, error) {
	var timeSeriesElements map[string]map[string]string
	if err := json.Unmarshal(raw[key], &timeSeriesElements); err != nil {
		return nil, fmt.Errorf("error unmarshaling time series: %w", err)
	}

	observations := make([]*m.PriceObservation, 0, len(timeSeriesElements))
	if len(timeSeriesElements) == 0 {
		return observations, nil
	}

	var firstValue map[string]string
	for _, v := range timeSeriesElements {
		firstValue = v
		break
	}
	headers := slices.Collect(maps.Keys(firstValue))

	closeKey, err := e.FilterSingle(headers, func(s string) bool { return strings.HasSuffix(s, ". close") })
	if err != nil {
		return nil, fmt.Errorf("error extracting close key for time series, available headers: %v", headers)
	}

	// the unadjusted endpoint has no adjusted close, volume is optional for our purposes
	adjustedCloseKey, _ := e.FilterSingle(headers, func(s string) bool { return strings.HasSuffix(s, ". adjusted close") })
	volumeKey, _ := e.FilterSingle(headers, func(s string) bool { return strings.HasSuffix(s, ". volume") })

	for timeSeriesKey, timeSeriesValue := range timeSeriesElements {
		timestamp, err := parseDate(timeSeriesKey, location)
		if err != nil {
			return nil, fmt.Errorf("error converting TIMESTAMP from string to time.Time: %w", err)
		}

		observations = append(observations, &m.PriceObservation{
			Timestamp:     timestamp,
			Close:         parseFloat(timeSeriesValue[closeKey]),
			AdjustedClose: parseFloat(timeSeriesValue[adjustedCloseKey]),
			Volume:        parseFloat(timeSeriesValue[volumeKey]),
		})
	}

	return observations, nil
}

func getTimeZone(location string) (*time.Location, error) {
	var loc string
	switch strings.ToUpper(location) {
	case "US/EASTERN":
		loc = "America/New_York"
	default:
		log.Printf("default time zone hit, %s is not recognized", location)
		return time.UTC, nil
	}

	res, err := time.LoadLocation(loc)
	if err != nil {
		return nil, fmt.Errorf("error parsing time zone %s in time.LoadLocation", loc)
	}

	return res, nil
}

func parseDate(dateString string, location *time.Location) (time.Time, error) {
	for _, format := range timeSeriesDateFormats {
		t, err := time.ParseInLocation(format, dateString, location)
		if err != nil {
			continue
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("error converting date %s to time.Time", dateString)
}

// parseFloat leaves the value invalid when missing or unparsable
func parseFloat(val string) null.Float {
	if val == "" {
		return null.Float{}
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return null.Float{}
	}
	return null.FloatFrom(f)
}
