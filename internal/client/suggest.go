package client

import (
	"context"
	"net/url"
	"strconv"
)

// SuggestionCapacity breaks down what a suggested combination seats.
type SuggestionCapacity struct {
	Std int `json:"std"`
}

// Suggestion is the best table combination for a party, or nothing.
type Suggestion struct {
	TableIDs []int64            `json:"table_ids"`
	Capacity SuggestionCapacity `json:"capacity"`
}

type suggestResponse struct {
	Best *Suggestion `json:"best"`
}

// SuggestTables asks the service for the best table combination for a party
// size, optionally within one room. A nil result means nothing fits.
func (c *Client) SuggestTables(ctx context.Context, roomID *int64, party int) (*Suggestion, error) {
	params := url.Values{}
	params.Set("party", strconv.Itoa(party))
	if roomID != nil {
		params.Set("room_id", strconv.FormatInt(*roomID, 10))
	}

	var resp suggestResponse
	if err := c.do(ctx, "GET", "/api/v1/tables/suggest", params, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Best, nil
}
