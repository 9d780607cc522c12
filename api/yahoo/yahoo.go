package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/guregu/null/v6"

	c "mc.service/api"
	m "mc.service/data/models"
)

const (
	HostDefault = "query1.finance.yahoo.com"

	defaultTimeout   = time.Second * 30
	defaultUserAgent = "Mozilla/5.0"
	chartPath        = "/v8/finance/chart/"
)

// Client pulls daily bars from the public chart api
type Client struct {
	*c.Client
	SymbolMap map[string]string
}

var _ c.HistoryProvider = (*Client)(nil)

func GetClient(opts ...c.ClientOption) *Client {
	opts = append([]c.ClientOption{c.WithHeader("User-Agent", defaultUserAgent)}, opts...)
	return &Client{
		Client: c.ClientFactory(HostDefault, "", defaultTimeout, opts...),
		SymbolMap: map[string]string{
			"SPX":   "^GSPC",
			"SP500": "^GSPC",
		},
	}
}

func (yc *Client) Name() string { return c.ProviderYahoo }

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol               string `json:"symbol"`
				RegularMarketTime    int64  `json:"regularMarketTime"`
				ExchangeTimezoneName string `json:"exchangeTimezoneName"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// GetDailyPriceHistory pulls the max range of daily bars, oldest observation first
func (yc *Client) GetDailyPriceHistory(ctx context.Context, symbol string) (*m.PriceHistoryResult, error) {
	symbol = c.NormalizeSymbol(symbol)
	ticker := symbol
	if mapped, ok := yc.SymbolMap[symbol]; ok {
		ticker = mapped
	}

	endpoint := &url.URL{Path: chartPath + ticker}
	q := endpoint.Query()
	q.Set("range", "max")
	q.Set("interval", "1d")
	q.Set("includeAdjustedClose", "true")
	endpoint.RawQuery = q.Encode()

	response, err := yc.Client.Connection.Request(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	if err := c.CheckStatus(response, symbol); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: error reading yahoo body: %w", c.ErrProviderUnavailable, err)
	}

	var chart chartResponse
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("%w: error decoding yahoo chart: %w", c.ErrProviderUnavailable, err)
	}
	if chart.Chart.Error != nil {
		if strings.EqualFold(chart.Chart.Error.Code, "Not Found") {
			return nil, fmt.Errorf("%w: %s (%s)", c.ErrSymbolNotFound, symbol, chart.Chart.Error.Description)
		}
		return nil, fmt.Errorf("%w: %s", c.ErrProviderUnavailable, chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 {
		return nil, fmt.Errorf("%w: no data returned for %s", c.ErrSymbolNotFound, symbol)
	}

	result := chart.Chart.Result[0]
	location := time.UTC
	if result.Meta.ExchangeTimezoneName != "" {
		if loc, err := time.LoadLocation(result.Meta.ExchangeTimezoneName); err == nil {
			location = loc
		}
	}

	var closes, volumes, adjCloses []*float64
	if len(result.Indicators.Quote) > 0 {
		closes = result.Indicators.Quote[0].Close
		volumes = result.Indicators.Quote[0].Volume
	}
	if len(result.Indicators.AdjClose) > 0 {
		adjCloses = result.Indicators.AdjClose[0].AdjClose
	}

	observations := make([]*m.PriceObservation, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		observations = append(observations, &m.PriceObservation{
			Timestamp:     time.Unix(ts, 0).In(location),
			Close:         at(closes, i),
			AdjustedClose: at(adjCloses, i),
			Volume:        at(volumes, i),
		})
	}
	c.SortObservations(observations)

	lastRefreshed := observations[len(observations)-1].Timestamp
	if result.Meta.RegularMarketTime > 0 {
		lastRefreshed = time.Unix(result.Meta.RegularMarketTime, 0).In(location)
	}

	return &m.PriceHistoryResult{
		Metadata: &m.PriceHistoryMetadata{
			Symbol:        symbol,
			Provider:      c.ProviderYahoo,
			LastRefreshed: lastRefreshed,
		},
		Observations: observations,
	}, nil
}

// at reads a nullable series entry, short series are treated as missing values
func at(values []*float64, i int) null.Float {
	if i >= len(values) || values[i] == nil {
		return null.Float{}
	}
	return null.FloatFrom(*values[i])
}
