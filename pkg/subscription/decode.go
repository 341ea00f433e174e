package subscription

import (
	"fmt"
	"math"

	bin "github.com/gagliardetto/binary"
	"lukechampine.com/uint128"
)

// Layout names the on-chain account shape of a tracked pool.
type Layout string

const (
	// LayoutAMM is a constant product pool: two u64 reserves at a
	// venue specific offset.
	LayoutAMM Layout = "amm"
	// LayoutCLMM is a concentrated liquidity pool: a Q64.64 sqrt
	// price stored as a little endian u128.
	LayoutCLMM Layout = "clmm"
)

// decodeAMM reads base and quote reserves and derives the spot rate of
// one base token in quote tokens, decimal adjusted.
func decodeAMM(data []byte, offset int, decA, decB uint8) (rate float64, baseReserve, quoteReserve uint64, err error) {
	if offset < 0 || offset+16 > len(data) {
		return 0, 0, 0, fmt.Errorf("account data %d bytes, reserves at %d", len(data), offset)
	}
	dec := bin.NewBinDecoder(data[offset:])
	baseReserve, err = dec.ReadUint64(bin.LE)
	if err != nil {
		return 0, 0, 0, err
	}
	quoteReserve, err = dec.ReadUint64(bin.LE)
	if err != nil {
		return 0, 0, 0, err
	}
	if baseReserve == 0 {
		return 0, baseReserve, quoteReserve, nil
	}
	baseUI := float64(baseReserve) / math.Pow10(int(decA))
	quoteUI := float64(quoteReserve) / math.Pow10(int(decB))
	return quoteUI / baseUI, baseReserve, quoteReserve, nil
}

// decodeCLMM reads the sqrt price and squares it back into a spot rate.
// The stored value prices raw base units in raw quote units, so the
// decimal difference has to be folded back in.
func decodeCLMM(data []byte, offset int, decA, decB uint8) (float64, error) {
	if offset < 0 || offset+16 > len(data) {
		return 0, fmt.Errorf("account data %d bytes, sqrt price at %d", len(data), offset)
	}
	sqrtX64 := uint128.FromBytes(data[offset : offset+16])
	sqrt := (float64(sqrtX64.Hi)*math.Pow(2, 64) + float64(sqrtX64.Lo)) / math.Pow(2, 64)
	rawRate := sqrt * sqrt
	return rawRate * math.Pow10(int(decA)-int(decB)), nil
}
