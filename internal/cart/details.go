// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Namath Provider Contributors

package cart

import (
	"encoding/json"

	"github.com/samber/oops"
	"github.com/shopspring/decimal"
)

// Details is a read-only view of the ticket fields Namath puts in a cart
// payload. Missing or null fields decode to their zero values.
type Details struct {
	Event          string              `json:"event"`
	Venue          string              `json:"venue"`
	DateTime       string              `json:"dateTime"`
	Section        string              `json:"section"`
	Row            string              `json:"row"`
	Quantity       int                 `json:"quantity"`
	Currency       string              `json:"currency"`
	Total          decimal.NullDecimal `json:"total"`
	Fees           decimal.NullDecimal `json:"fees"`
	Tax            decimal.NullDecimal `json:"tax"`
	CostPerTicket  decimal.NullDecimal `json:"costPerTicket"`
	FeesPerTicket  decimal.NullDecimal `json:"feesPerTicket"`
	Marketplace    string              `json:"marketplace"`
	DeliveryMethod string              `json:"deliveryMethod"`
	TicketType     string              `json:"ticketType"`
	SeatMapURL     string              `json:"seatMapURL"`
	OddEven        bool                `json:"oddEven"`
	TicketGroups   []TicketGroup       `json:"ticketGroups"`
}

// TicketGroup is a contiguous block of seats within a cart.
type TicketGroup struct {
	SectionRowSeatsRange    string   `json:"sectionRowSeatsRange"`
	SectionRowSeatsItemized string   `json:"sectionRowSeatsItemized"`
	Section                 string   `json:"section"`
	Row                     string   `json:"row"`
	Seats                   []string `json:"seats"`
	Price                   Price    `json:"price"`
}

// Price is the per-group price breakdown.
type Price struct {
	BasePrice decimal.NullDecimal `json:"basePrice"`
	Tax       decimal.NullDecimal `json:"tax"`
}

// ParseDetails decodes the ticket fields of a payload. An empty payload
// yields empty details.
func ParseDetails(payload json.RawMessage) (Details, error) {
	var d Details
	if len(payload) == 0 {
		return d, nil
	}
	if err := json.Unmarshal(payload, &d); err != nil {
		return Details{}, oops.Code("CART_PAYLOAD_INVALID").Wrap(err)
	}
	return d, nil
}

// SeatCount returns the number of seats in the cart, preferring the itemized
// ticket groups over the quantity field.
func (d Details) SeatCount() int {
	n := 0
	for _, g := range d.TicketGroups {
		n += len(g.Seats)
	}
	if n == 0 {
		return d.Quantity
	}
	return n
}

// GrandTotal returns the cart total. When the total field is absent it is
// summed from the ticket groups; ok is false if neither is present.
func (d Details) GrandTotal() (total decimal.Decimal, ok bool) {
	if d.Total.Valid {
		return d.Total.Decimal, true
	}
	for _, g := range d.TicketGroups {
		if !g.Price.BasePrice.Valid {
			continue
		}
		seats := int64(len(g.Seats))
		if seats == 0 {
			seats = 1
		}
		line := g.Price.BasePrice.Decimal
		if g.Price.Tax.Valid {
			line = line.Add(g.Price.Tax.Decimal)
		}
		total = total.Add(line.Mul(decimal.NewFromInt(seats)))
		ok = true
	}
	return total, ok
}
