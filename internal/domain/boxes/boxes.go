// Package boxes is the box-building demo shown next to the Games tab:
// one resource, a click action, and three upgrades.
// This package is PURE and must NOT import any infrastructure packages.
package boxes

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// UpgradeID identifies a purchasable upgrade.
type UpgradeID string

const (
	UpgradeBiggerHands UpgradeID = "bigger-hands"
	UpgradeBoxFactory  UpgradeID = "box-factory"
	UpgradeRecycling   UpgradeID = "cardboard-recycling"
)

var (
	ErrUnknownUpgrade    = errors.New("unknown upgrade")
	ErrAlreadyBought     = errors.New("upgrade already bought")
	ErrLocked            = errors.New("upgrade is locked")
	ErrInsufficientBoxes = errors.New("not enough boxes")
)

// Upgrade is a one-time purchase paid in boxes.
type Upgrade struct {
	ID          UpgradeID       `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Cost        decimal.Decimal `json:"cost"`
	Requires    UpgradeID       `json:"requires,omitempty"`
	Bought      bool            `json:"bought"`
}

// Layer holds the box resource and its upgrades.
type Layer struct {
	Name     string
	Boxes    decimal.Decimal
	Best     decimal.Decimal
	Total    decimal.Decimal
	Upgrades []*Upgrade
}

// State is the persisted part of the layer. Decimals are kept as strings.
type State struct {
	Boxes  string      `json:"boxes"`
	Best   string      `json:"best"`
	Total  string      `json:"total"`
	Bought []UpgradeID `json:"bought"`
}

// NewLayer creates the demo with no boxes and nothing bought.
func NewLayer() *Layer {
	return &Layer{
		Name: "Boxes",
		Upgrades: []*Upgrade{
			{ID: UpgradeBiggerHands, Title: "Bigger Hands", Description: "Make twice as many boxes per click.", Cost: decimal.NewFromInt(10)},
			{ID: UpgradeBoxFactory, Title: "Box Factory", Description: "Produce 1 box every second.", Cost: decimal.NewFromInt(25)},
			{ID: UpgradeRecycling, Title: "Cardboard Recycling", Description: "Factory output is multiplied by 1.5.", Cost: decimal.NewFromInt(50), Requires: UpgradeBoxFactory},
		},
	}
}

// Upgrade returns the upgrade with the given id, or nil.
func (l *Layer) Upgrade(id UpgradeID) *Upgrade {
	for _, u := range l.Upgrades {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func (l *Layer) has(id UpgradeID) bool {
	u := l.Upgrade(id)
	return u != nil && u.Bought
}

// ClickGain is the number of boxes one click makes.
func (l *Layer) ClickGain() decimal.Decimal {
	gain := decimal.NewFromInt(1)
	if l.has(UpgradeBiggerHands) {
		gain = gain.Mul(decimal.NewFromInt(2))
	}
	return gain
}

// PassiveRate is the number of boxes produced per second.
func (l *Layer) PassiveRate() decimal.Decimal {
	if !l.has(UpgradeBoxFactory) {
		return decimal.Zero
	}
	rate := decimal.NewFromInt(1)
	if l.has(UpgradeRecycling) {
		rate = rate.Mul(decimal.NewFromFloat(1.5))
	}
	return rate
}

func (l *Layer) add(amount decimal.Decimal) {
	l.Boxes = l.Boxes.Add(amount)
	l.Total = l.Total.Add(amount)
	if l.Boxes.GreaterThan(l.Best) {
		l.Best = l.Boxes
	}
}

// MakeBox performs one click and returns the boxes made.
func (l *Layer) MakeBox() decimal.Decimal {
	gain := l.ClickGain()
	l.add(gain)
	return gain
}

// Update applies passive production for delta seconds.
func (l *Layer) Update(delta float64) {
	rate := l.PassiveRate()
	if rate.IsZero() || !(delta > 0) || math.IsInf(delta, 1) {
		return
	}
	l.add(rate.Mul(decimal.NewFromFloat(delta)))
}

// CanBuy reports why an upgrade cannot be bought, or nil if it can.
func (l *Layer) CanBuy(id UpgradeID) error {
	u := l.Upgrade(id)
	switch {
	case u == nil:
		return fmt.Errorf("%w: %q", ErrUnknownUpgrade, id)
	case u.Bought:
		return fmt.Errorf("%w: %s", ErrAlreadyBought, id)
	case u.Requires != "" && !l.has(u.Requires):
		return fmt.Errorf("%w: %s requires %s", ErrLocked, id, u.Requires)
	case l.Boxes.LessThan(u.Cost):
		return fmt.Errorf("%w: %s costs %s", ErrInsufficientBoxes, id, u.Cost)
	}
	return nil
}

// Buy pays for an upgrade.
func (l *Layer) Buy(id UpgradeID) error {
	if err := l.CanBuy(id); err != nil {
		return err
	}
	u := l.Upgrade(id)
	l.Boxes = l.Boxes.Sub(u.Cost)
	u.Bought = true
	return nil
}

// State captures the persisted values.
func (l *Layer) State() State {
	st := State{
		Boxes:  l.Boxes.String(),
		Best:   l.Best.String(),
		Total:  l.Total.String(),
		Bought: []UpgradeID{},
	}
	for _, u := range l.Upgrades {
		if u.Bought {
			st.Bought = append(st.Bought, u.ID)
		}
	}
	return st
}

// Apply restores persisted values. Unparseable amounts reset to zero and
// unknown upgrades are ignored.
func (l *Layer) Apply(st State) {
	l.Boxes = parseOrZero(st.Boxes)
	l.Best = parseOrZero(st.Best)
	l.Total = parseOrZero(st.Total)
	for _, u := range l.Upgrades {
		u.Bought = false
	}
	for _, id := range st.Bought {
		if u := l.Upgrade(id); u != nil {
			u.Bought = true
		}
	}
}

func parseOrZero(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
