package swap

import (
	"fmt"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
)

// Coin is the foreign chain of a swap. The numeric values travel in offers.
type Coin uint8

const (
	// CoinBitcoin is the bitcoin chain.
	CoinBitcoin Coin = iota

	// CoinLitecoin is the litecoin chain.
	CoinLitecoin

	// CoinQtum is the qtum chain.
	CoinQtum
)

type coinInfo struct {
	ticker        string
	name          string
	feeRateLabel  string
	confs         uint32
	blockInterval time.Duration
}

var coins = map[Coin]coinInfo{
	CoinBitcoin: {
		"BTC", "Bitcoin", "sat/kB", 6, 10 * time.Minute,
	},
	CoinLitecoin: {
		"LTC", "Litecoin", "ph/kB", 6, 150 * time.Second,
	},
	CoinQtum: {
		"QTUM", "Qtum", "qsat/kB", 10, 32 * time.Second,
	},
}

// BeamTicker is the currency sign of the BEAM leg.
const BeamTicker = "BEAM"

// BeamRequiredConfs is the number of confirmations after which a BEAM kernel
// is considered proven.
const BeamRequiredConfs = 1

// Known returns true for supported coins.
func (c Coin) Known() bool {
	_, ok := coins[c]
	return ok
}

// String returns the ticker of the coin.
func (c Coin) String() string {
	info, ok := coins[c]
	if !ok {
		return "Unknown"
	}

	return info.ticker
}

// Name returns the full name of the coin.
func (c Coin) Name() string {
	info, ok := coins[c]
	if !ok {
		return "Unknown"
	}

	return info.name
}

// FeeRateLabel returns the unit fee rates of the coin are displayed in.
func (c Coin) FeeRateLabel() string {
	return coins[c].feeRateLabel
}

// DefaultRequiredConfs returns the number of confirmations after which a lock
// on the coin's chain is considered final.
func (c Coin) DefaultRequiredConfs() uint32 {
	return coins[c].confs
}

// BlockInterval returns the target block interval of the coin's chain.
func (c Coin) BlockInterval() time.Duration {
	return coins[c].blockInterval
}

// ParseCoin parses a coin ticker, case insensitive.
func ParseCoin(s string) (Coin, error) {
	for c, info := range coins {
		if strings.EqualFold(info.ticker, s) {
			return c, nil
		}
	}

	return 0, fmt.Errorf("unknown swap coin: %v", s)
}

// FormatAmount renders an amount given in the smallest unit of a coin, all
// of which use eight decimals, followed by the coin sign. An empty sign
// renders the bare number.
func FormatAmount(amt uint64, sign string) string {
	str := strings.TrimSuffix(
		btcutil.Amount(amt).Format(btcutil.AmountBTC), " BTC",
	)
	if strings.Contains(str, ".") {
		str = strings.TrimRight(strings.TrimRight(str, "0"), ".")
	}

	if sign == "" {
		return str
	}

	return str + " " + sign
}

// FormatCoinAmount renders a foreign coin amount with its ticker.
func FormatCoinAmount(amt uint64, c Coin) string {
	return FormatAmount(amt, c.String())
}

// FormatBeamAmount renders an amount in groth as BEAM.
func FormatBeamAmount(amt uint64) string {
	return FormatAmount(amt, BeamTicker)
}

// ParseAmount parses a decimal amount into the coin's smallest unit.
func ParseAmount(s string) (uint64, error) {
	var f float64
	if _, err := fmt.Sscanf(s, "%g", &f); err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if f < 0 {
		return 0, fmt.Errorf("negative amount %q", s)
	}

	amt, err := btcutil.NewAmount(f)
	if err != nil {
		return 0, err
	}

	return uint64(amt), nil
}
