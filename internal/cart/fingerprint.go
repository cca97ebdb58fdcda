package cart

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/rtwroastery/roastery-backend/pkg/types"
)

// Fingerprint identifies a checkout snapshot: the referenced items with
// their quantities, the destination and the shipping rate. Line ids and
// ordering do not affect it.
func Fingerprint(items []LineItemRef, address types.ShippingAddress, rateID *uuid.UUID) string {
	parts := make([]string, 0, len(items)+2)
	for _, item := range items {
		switch {
		case item.ProductID != nil:
			parts = append(parts, fmt.Sprintf("p:%s:%d", item.ProductID, item.Quantity))
		case item.CustomBlendID != nil:
			parts = append(parts, fmt.Sprintf("b:%s:%d", item.CustomBlendID, item.Quantity))
		default:
			parts = append(parts, fmt.Sprintf("x:%d", item.Quantity))
		}
	}
	sort.Strings(parts)

	rate := ""
	if rateID != nil {
		rate = rateID.String()
	}
	parts = append(parts,
		"rate:"+rate,
		"ship:"+strings.ToLower(strings.Join([]string{
			strings.TrimSpace(address.Address),
			strings.TrimSpace(address.City),
			strings.TrimSpace(address.State),
			strings.TrimSpace(address.Zip),
		}, "|")),
	)

	sum := sha256.Sum256([]byte(strings.Join(parts, "\n")))
	return hex.EncodeToString(sum[:])
}
