package pricefeed

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-resty/resty/v2"
)

// HTTPFeed pulls quotes from a JSON price endpoint. The endpoint contract is
// GET {base}/v1/price?token=0x..&currency=USD returning a quoteResponse.
type HTTPFeed struct {
	client *resty.Client
}

type quoteResponse struct {
	Answer   int64  `json:"answer"`
	Decimals int32  `json:"decimals"`
	Currency string `json:"currency"`
}

func NewHTTPFeed(base string) *HTTPFeed {
	base = strings.TrimSuffix(base, "/")
	client := resty.New().
		SetBaseURL(base).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second)
	return &HTTPFeed{client: client}
}

func (f *HTTPFeed) Quote(ctx context.Context, tok common.Address, currency string) (Price, error) {
	var out quoteResponse
	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParam("token", tok.Hex()).
		SetQueryParam("currency", currency).
		SetResult(&out).
		Get("/v1/price")
	if err != nil {
		return Price{}, fmt.Errorf("quote %s/%s: %w", tok.Hex(), currency, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return Price{}, fmt.Errorf("%w: %s/%s", ErrNoPrice, tok.Hex(), currency)
	}
	if resp.IsError() {
		return Price{}, fmt.Errorf("quote %s/%s: status %d", tok.Hex(), currency, resp.StatusCode())
	}
	return Price{
		Answer:   out.Answer,
		Decimals: out.Decimals,
		Currency: out.Currency,
	}, nil
}
