package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"MarketLens/internal/model"
)

const (
	DefaultYahooBaseURL    = "https://query1.finance.yahoo.com"
	DefaultYahooSessionURL = "https://fc.yahoo.com"
	DefaultYahooTimeout    = 30 * time.Second
	DefaultYahooRateLimit  = 5 // requests per second

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// YahooFetcher implements BatchFetcher using the Yahoo Finance public API.
type YahooFetcher struct {
	baseURL    string
	sessionURL string
	client     *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
	symbolMap  map[string]string // maps internal symbol to Yahoo ticker

	mu    sync.Mutex
	crumb string
}

// YahooOption configures a YahooFetcher.
type YahooOption func(*YahooFetcher)

// WithBaseURL sets the API host.
func WithBaseURL(baseURL string) YahooOption {
	return func(f *YahooFetcher) {
		f.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithSessionURL sets the page visited to obtain the session cookie.
func WithSessionURL(sessionURL string) YahooOption {
	return func(f *YahooFetcher) {
		f.sessionURL = sessionURL
	}
}

// WithRateLimit sets the token bucket. A non-positive rate disables limiting.
func WithRateLimit(perSecond float64, burst int) YahooOption {
	return func(f *YahooFetcher) {
		if perSecond <= 0 {
			f.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		if burst < 1 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) YahooOption {
	return func(f *YahooFetcher) {
		f.client.Timeout = timeout
	}
}

// WithProxy routes requests through proxyURL. Invalid URLs are ignored.
func WithProxy(proxyURL string) YahooOption {
	return func(f *YahooFetcher) {
		if proxyURL == "" {
			return
		}
		if u, err := url.Parse(proxyURL); err == nil {
			f.client.Transport = &http.Transport{Proxy: http.ProxyURL(u)}
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) YahooOption {
	return func(f *YahooFetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewYahooFetcher creates a new Yahoo Finance fetcher.
func NewYahooFetcher(opts ...YahooOption) *YahooFetcher {
	jar, _ := cookiejar.New(nil) // never fails without a PublicSuffixList
	f := &YahooFetcher{
		baseURL:    DefaultYahooBaseURL,
		sessionURL: DefaultYahooSessionURL,
		client: &http.Client{
			Timeout: DefaultYahooTimeout,
			Jar:     jar,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultYahooRateLimit), DefaultYahooRateLimit),
		logger:  zap.NewNop(),
		symbolMap: map[string]string{
			"SPX500": "^GSPC",
			"SPX":    "^GSPC",
			"SP500":  "^GSPC",
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With(zap.String("component", "yahoo"))
	return f
}

func (f *YahooFetcher) Name() string { return "yahoo" }

func (f *YahooFetcher) yahooSymbol(symbol string) string {
	if mapped, ok := f.symbolMap[symbol]; ok {
		return mapped
	}
	return symbol
}

// get performs one rate-limited GET against the API host and returns the
// body of a 200 response. Non-200 statuses are mapped to FetchError kinds.
func (f *YahooFetcher) get(ctx context.Context, symbol, path string, query url.Values, withCrumb bool) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, transportError(symbol, fmt.Errorf("rate limit wait: %w", err))
	}
	if query == nil {
		query = url.Values{}
	}
	if withCrumb {
		crumb, err := f.sessionCrumb(ctx)
		if err != nil {
			return nil, model.AsFetchError(symbol, err)
		}
		query.Set("crumb", crumb)
	}

	reqURL := f.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, model.NewFetchError(symbol, model.MalformedResponse, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := f.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		f.logger.Warn("request failed", zap.String("symbol", symbol), zap.String("path", path),
			zap.Duration("elapsed", elapsed), zap.Error(err))
		return nil, transportError(symbol, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(symbol, fmt.Errorf("read body: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			f.dropCrumb()
		}
		f.logger.Warn("non-OK response", zap.String("symbol", symbol), zap.String("path", path),
			zap.Int("status", resp.StatusCode), zap.Duration("elapsed", elapsed))
		return nil, statusError(symbol, resp.StatusCode, body)
	}
	f.logger.Debug("request", zap.String("symbol", symbol), zap.String("path", path), zap.Duration("elapsed", elapsed))
	return body, nil
}

// statusError maps a non-200 upstream status to a FetchError.
func statusError(symbol string, status int, body []byte) *model.FetchError {
	snippet := string(body)
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	err := fmt.Errorf("yahoo: status %d, body: %s", status, snippet)
	switch status {
	case http.StatusNotFound:
		return model.NewFetchError(symbol, model.NotFound, err)
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return model.NewFetchError(symbol, model.RateLimited, err)
	default:
		return model.NewFetchError(symbol, model.MalformedResponse, err)
	}
}

// transportError maps a client-side failure to a FetchError.
func transportError(symbol string, err error) *model.FetchError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return model.NewFetchError(symbol, model.Timeout, err)
	}
	return model.NewFetchError(symbol, model.MalformedResponse, err)
}

// sessionCrumb returns the crumb paired with the session cookie, acquiring
// both on first use.
func (f *YahooFetcher) sessionCrumb(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.crumb != "" {
		return f.crumb, nil
	}

	// The session page answers 404 but still sets the cookie.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.sessionURL, nil)
	if err != nil {
		return "", fmt.Errorf("create session request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := f.client.Do(req)
	if err != nil {
		return "", transportError("", fmt.Errorf("session cookie: %w", err))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	req, err = http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/v1/test/getcrumb", nil)
	if err != nil {
		return "", fmt.Errorf("create crumb request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err = f.client.Do(req)
	if err != nil {
		return "", transportError("", fmt.Errorf("crumb: %w", err))
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", transportError("", fmt.Errorf("read crumb: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return "", statusError("", resp.StatusCode, body)
	}
	crumb := strings.TrimSpace(string(body))
	if crumb == "" || strings.ContainsAny(crumb, "{<") {
		return "", model.NewFetchError("", model.MalformedResponse, fmt.Errorf("yahoo: unusable crumb %q", crumb))
	}
	f.crumb = crumb
	f.logger.Debug("session crumb acquired")
	return crumb, nil
}

func (f *YahooFetcher) dropCrumb() {
	f.mu.Lock()
	f.crumb = ""
	f.mu.Unlock()
}

type yahooError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// yahooQuoteResponse is the response structure from the v7 quote API.
type yahooQuoteResponse struct {
	QuoteResponse struct {
		Result []json.RawMessage `json:"result"`
		Error  *yahooError       `json:"error"`
	} `json:"quoteResponse"`
}

type yahooQuote struct {
	Symbol                      string   `json:"symbol"`
	ShortName                   string   `json:"shortName"`
	LongName                    string   `json:"longName"`
	Currency                    string   `json:"currency"`
	MarketState                 string   `json:"marketState"`
	RegularMarketPrice          float64  `json:"regularMarketPrice"`
	RegularMarketPreviousClose  float64  `json:"regularMarketPreviousClose"`
	RegularMarketChange         *float64 `json:"regularMarketChange"`
	RegularMarketChangePercent  *float64 `json:"regularMarketChangePercent"`
	RegularMarketDayHigh        float64  `json:"regularMarketDayHigh"`
	RegularMarketDayLow         float64  `json:"regularMarketDayLow"`
	RegularMarketVolume         float64  `json:"regularMarketVolume"`
	RegularMarketTime           int64    `json:"regularMarketTime"`
	FiftyTwoWeekHigh            float64  `json:"fiftyTwoWeekHigh"`
	FiftyTwoWeekLow             float64  `json:"fiftyTwoWeekLow"`
	AverageDailyVolume10Day     float64  `json:"averageDailyVolume10Day"`
	AverageDailyVolume3Month    float64  `json:"averageDailyVolume3Month"`
	FiftyDayAverage             float64  `json:"fiftyDayAverage"`
	TwoHundredDayAverage        float64  `json:"twoHundredDayAverage"`
	MarketCap                   float64  `json:"marketCap"`
	Beta                        *float64 `json:"beta"`
	TrailingAnnualDividendYield *float64 `json:"trailingAnnualDividendYield"` // decimal
	DividendYield               *float64 `json:"dividendYield"`               // percent
}

func (q *yahooQuote) snapshot(symbol string) (*model.Snapshot, error) {
	if q.RegularMarketPrice <= 0 || math.IsNaN(q.RegularMarketPrice) || math.IsInf(q.RegularMarketPrice, 0) {
		return nil, model.NewFetchError(symbol, model.MalformedResponse,
			fmt.Errorf("yahoo: invalid price %v", q.RegularMarketPrice))
	}
	name := q.LongName
	if name == "" {
		name = q.ShortName
	}
	s := &model.Snapshot{
		Symbol:           symbol,
		Name:             name,
		Currency:         q.Currency,
		MarketState:      q.MarketState,
		Price:            q.RegularMarketPrice,
		PreviousClose:    q.RegularMarketPreviousClose,
		DayHigh:          q.RegularMarketDayHigh,
		DayLow:           q.RegularMarketDayLow,
		High52w:          q.FiftyTwoWeekHigh,
		Low52w:           q.FiftyTwoWeekLow,
		Volume:           q.RegularMarketVolume,
		AvgVolume10d:     q.AverageDailyVolume10Day,
		AvgVolume3mo:     q.AverageDailyVolume3Month,
		FiftyDayAvg:      q.FiftyDayAverage,
		TwoHundredDayAvg: q.TwoHundredDayAverage,
		MarketCap:        q.MarketCap,
		Beta:             q.Beta,
	}
	if q.RegularMarketTime > 0 {
		s.QuoteTime = time.Unix(q.RegularMarketTime, 0).UTC()
	}
	switch {
	case q.RegularMarketChange != nil:
		s.Change = *q.RegularMarketChange
	case s.PreviousClose > 0:
		s.Change = s.Price - s.PreviousClose
	}
	switch {
	case q.RegularMarketChangePercent != nil:
		s.ChangePercent = *q.RegularMarketChangePercent
	case s.PreviousClose > 0:
		s.ChangePercent = (s.Price - s.PreviousClose) / s.PreviousClose * 100
	}
	switch {
	case q.TrailingAnnualDividendYield != nil:
		y := *q.TrailingAnnualDividendYield
		s.DividendYield = &y
	case q.DividendYield != nil:
		y := *q.DividendYield / 100
		s.DividendYield = &y
	}
	return s, nil
}

// FetchSnapshots quotes symbols in one call. Each quote is decoded on its
// own: an unusable quote fails only the symbols mapped to its ticker.
// Symbols missing from the response are in neither map.
func (f *YahooFetcher) FetchSnapshots(ctx context.Context, symbols []string) (map[string]*model.Snapshot, map[string]error, error) {
	if len(symbols) == 0 {
		return map[string]*model.Snapshot{}, nil, nil
	}
	// internal symbols keyed by Yahoo ticker; aliases share a ticker
	bySource := make(map[string][]string, len(symbols))
	tickers := make([]string, 0, len(symbols))
	for _, s := range symbols {
		ys := f.yahooSymbol(s)
		if _, ok := bySource[ys]; !ok {
			tickers = append(tickers, ys)
		}
		bySource[ys] = append(bySource[ys], s)
	}
	label := strings.Join(symbols, ",")

	body, err := f.get(ctx, label, "/v7/finance/quote", url.Values{"symbols": {strings.Join(tickers, ",")}}, true)
	if err != nil {
		return nil, nil, err
	}

	var resp yahooQuoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, nil, model.NewFetchError(label, model.MalformedResponse, fmt.Errorf("yahoo decode: %w", err))
	}
	if resp.QuoteResponse.Error != nil {
		return nil, nil, model.NewFetchError(label, model.MalformedResponse,
			fmt.Errorf("yahoo api error: %s", resp.QuoteResponse.Error.Description))
	}

	out := make(map[string]*model.Snapshot, len(symbols))
	errs := make(map[string]error)
	for _, raw := range resp.QuoteResponse.Result {
		var head struct {
			Symbol string `json:"symbol"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			f.logger.Warn("skipping unreadable quote", zap.String("symbols", label), zap.Error(err))
			continue
		}
		targets, ok := bySource[strings.ToUpper(head.Symbol)]
		if !ok {
			continue
		}
		var q yahooQuote
		if err := json.Unmarshal(raw, &q); err != nil {
			for _, sym := range targets {
				errs[sym] = model.NewFetchError(sym, model.MalformedResponse, fmt.Errorf("yahoo decode quote: %w", err))
			}
			continue
		}
		for _, sym := range targets {
			snap, err := q.snapshot(sym)
			if err != nil {
				errs[sym] = err
				continue
			}
			out[sym] = snap
		}
	}
	return out, errs, nil
}

// FetchSnapshot quotes a single symbol.
func (f *YahooFetcher) FetchSnapshot(ctx context.Context, symbol string) (*model.Snapshot, error) {
	snaps, errs, err := f.FetchSnapshots(ctx, []string{symbol})
	if err != nil {
		return nil, err
	}
	if err := errs[symbol]; err != nil {
		return nil, err
	}
	snap, ok := snaps[symbol]
	if !ok {
		return nil, model.NewFetchError(symbol, model.NotFound, fmt.Errorf("yahoo: no quote returned"))
	}
	return snap, nil
}

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []interface{} `json:"open"`
					High   []interface{} `json:"high"`
					Low    []interface{} `json:"low"`
					Close  []interface{} `json:"close"`
					Volume []interface{} `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *yahooError `json:"error"`
	} `json:"chart"`
}

func toFloat(v interface{}) float64 {
	if v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

func at(values []interface{}, i int) float64 {
	if i >= len(values) {
		return 0
	}
	return toFloat(values[i])
}

// FetchHistory returns daily bars between start and end, oldest first.
func (f *YahooFetcher) FetchHistory(ctx context.Context, symbol string, start, end time.Time) (*model.PriceSeries, error) {
	query := url.Values{
		"interval": {"1d"},
		"period1":  {fmt.Sprint(start.Unix())},
		"period2":  {fmt.Sprint(end.Unix())},
	}
	body, err := f.get(ctx, symbol, "/v8/finance/chart/"+url.PathEscape(f.yahooSymbol(symbol)), query, false)
	if err != nil {
		return nil, err
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, model.NewFetchError(symbol, model.MalformedResponse, fmt.Errorf("yahoo decode: %w", err))
	}
	if chart.Chart.Error != nil {
		kind := model.MalformedResponse
		if strings.EqualFold(chart.Chart.Error.Code, "Not Found") {
			kind = model.NotFound
		}
		return nil, model.NewFetchError(symbol, kind, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description))
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 ||
		len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, model.NewFetchError(symbol, model.NotFound, fmt.Errorf("yahoo: no data returned"))
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	bars := make([]model.OHLCV, 0, len(result.Timestamp))

	for i, ts := range result.Timestamp {
		o := at(quote.Open, i)
		h := at(quote.High, i)
		l := at(quote.Low, i)
		c := at(quote.Close, i)
		if o == 0 && h == 0 && l == 0 && c == 0 {
			continue // skip null bars (holidays etc.)
		}
		bars = append(bars, model.OHLCV{
			Time:   time.Unix(ts, 0).UTC(),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  c,
			Volume: at(quote.Volume, i),
		})
	}
	if len(bars) == 0 {
		return nil, model.NewFetchError(symbol, model.NotFound, fmt.Errorf("yahoo: only null bars returned"))
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return &model.PriceSeries{Symbol: symbol, Bars: bars, FetchedAt: time.Now()}, nil
}
