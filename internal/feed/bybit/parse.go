package bybit

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const tickerTopicPrefix = "tickers."

type envelope struct {
	Topic   string          `json:"topic"`
	Type    string          `json:"type"`
	Ts      int64           `json:"ts"`
	Data    json.RawMessage `json:"data"`
	Op      string          `json:"op"`
	Success *bool           `json:"success"`
	RetMsg  string          `json:"ret_msg"`
}

// ticker is one entry of a tickers.* push. Delta pushes carry only the
// fields that changed, so every field may be empty.
type ticker struct {
	Symbol          string `json:"symbol"`
	Bid1Price       string `json:"bid1Price"`
	Ask1Price       string `json:"ask1Price"`
	LastPrice       string `json:"lastPrice"`
	FundingRate     string `json:"fundingRate"`
	NextFundingTime string `json:"nextFundingTime"`
}

// control is a non-data frame: subscribe acks and pongs.
type control struct {
	Op      string
	Success bool
	RetMsg  string
}

// parseMessage splits a raw frame into tickers or a control frame. Frames for
// other topics yield neither.
func parseMessage(raw []byte) ([]ticker, *control, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, nil, fmt.Errorf("decode frame: %w", err)
	}
	if env.Topic == "" {
		if env.Op == "" {
			return nil, nil, errors.New("frame without topic or op")
		}
		ctl := &control{Op: env.Op, Success: env.Success == nil || *env.Success, RetMsg: env.RetMsg}
		return nil, ctl, nil
	}
	if !strings.HasPrefix(env.Topic, tickerTopicPrefix) {
		return nil, nil, nil
	}
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil, errors.New("ticker frame without data")
	}
	switch data[0] {
	case '[':
		var items []ticker
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, nil, fmt.Errorf("decode ticker list: %w", err)
		}
		return items, nil, nil
	case '{':
		var item ticker
		if err := json.Unmarshal(data, &item); err != nil {
			return nil, nil, fmt.Errorf("decode ticker: %w", err)
		}
		return []ticker{item}, nil, nil
	default:
		return nil, nil, fmt.Errorf("unexpected ticker data %q", string(data[:1]))
	}
}

func parsePrice(s string) (decimal.Decimal, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false, nil
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("parse price %q: %w", s, err)
	}
	return v, true, nil
}

func parseMillis(s string) (time.Time, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, nil
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse time %q: %w", s, err)
	}
	if ms <= 0 {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(ms).UTC(), true, nil
}
