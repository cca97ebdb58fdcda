package cart

import (
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rtwroastery/roastery-backend/pkg/types"
)

func ptr(id uuid.UUID) *uuid.UUID { return &id }

func TestResolvePricesKnownReferences(t *testing.T) {
	productID := uuid.New()
	blendID := uuid.New()
	catalog := CatalogIndex{productID: {Name: "Huila", Price: decimal.RequireFromString("10.00")}}
	blends := BlendIndex{blendID: {Name: "House", Price: decimal.RequireFromString("25.00")}}

	items := []LineItemRef{
		{ID: uuid.New(), ProductID: ptr(productID), Quantity: 2},
		{ID: uuid.New(), CustomBlendID: ptr(blendID), Quantity: 1},
	}
	lines := Resolve(items, catalog, blends)

	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0].Kind != KindProduct || lines[0].Name != "Huila" || lines[0].Missing {
		t.Fatalf("unexpected product line %+v", lines[0])
	}
	if !lines[0].LineTotal().Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected line total 20, got %s", lines[0].LineTotal())
	}
	if lines[1].Kind != KindCustomBlend || lines[1].Name != "House" {
		t.Fatalf("unexpected blend line %+v", lines[1])
	}
}

func TestResolveEmitsPlaceholdersForMissingReferences(t *testing.T) {
	items := []LineItemRef{
		{ID: uuid.New(), ProductID: ptr(uuid.New()), Quantity: 3},
		{ID: uuid.New(), CustomBlendID: ptr(uuid.New()), Quantity: 1},
		{ID: uuid.New(), Quantity: 1},
		{ID: uuid.New(), ProductID: ptr(uuid.New()), CustomBlendID: ptr(uuid.New()), Quantity: 1},
	}
	lines := Resolve(items, nil, nil)

	if len(lines) != len(items) {
		t.Fatalf("output length %d != input length %d", len(lines), len(items))
	}
	wantNames := []string{UnknownProductName, UnknownBlendName, UnknownItemName, UnknownItemName}
	for i, line := range lines {
		if !line.Missing {
			t.Fatalf("line %d should be flagged missing", i)
		}
		if line.Name != wantNames[i] {
			t.Fatalf("line %d name = %q, want %q", i, line.Name, wantNames[i])
		}
		if !line.UnitPrice.IsZero() {
			t.Fatalf("line %d should be zero priced, got %s", i, line.UnitPrice)
		}
		if line.ID != items[i].ID || line.Quantity != items[i].Quantity {
			t.Fatalf("line %d does not preserve input order", i)
		}
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	productID := uuid.New()
	catalog := CatalogIndex{productID: {Name: "Cerrado", Price: decimal.RequireFromString("14.25")}}
	items := []LineItemRef{
		{ID: uuid.New(), ProductID: ptr(productID), Quantity: 1},
		{ID: uuid.New(), CustomBlendID: ptr(uuid.New()), Quantity: 2},
	}

	first := Resolve(items, catalog, BlendIndex{})
	second := Resolve(items, catalog, BlendIndex{})
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("resolve is not idempotent:\n%+v\n%+v", first, second)
	}
}

func TestResolveEmptyCart(t *testing.T) {
	if lines := Resolve(nil, nil, nil); len(lines) != 0 {
		t.Fatalf("expected no lines, got %d", len(lines))
	}
}

func TestCollectIDsDeduplicates(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	items := []LineItemRef{
		{ProductID: ptr(a)}, {ProductID: ptr(a)}, {CustomBlendID: ptr(b)},
	}
	if ids := ProductIDs(items); len(ids) != 1 || ids[0] != a {
		t.Fatalf("unexpected product ids %v", ids)
	}
	if ids := BlendIDs(items); len(ids) != 1 || ids[0] != b {
		t.Fatalf("unexpected blend ids %v", ids)
	}
}

func TestFingerprintIgnoresOrderAndLineIDs(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	rate := uuid.New()
	addr := types.ShippingAddress{Address: "1 Bean St", City: "Austin", State: "TX", Zip: "78701"}

	first := Fingerprint([]LineItemRef{
		{ID: uuid.New(), ProductID: ptr(a), Quantity: 2},
		{ID: uuid.New(), CustomBlendID: ptr(b), Quantity: 1},
	}, addr, &rate)
	second := Fingerprint([]LineItemRef{
		{ID: uuid.New(), CustomBlendID: ptr(b), Quantity: 1},
		{ID: uuid.New(), ProductID: ptr(a), Quantity: 2},
	}, addr, &rate)
	if first != second {
		t.Fatalf("fingerprints differ for the same snapshot")
	}

	changedQty := Fingerprint([]LineItemRef{
		{ProductID: ptr(a), Quantity: 3},
		{CustomBlendID: ptr(b), Quantity: 1},
	}, addr, &rate)
	if changedQty == first {
		t.Fatalf("quantity change must alter the fingerprint")
	}

	otherRate := uuid.New()
	if Fingerprint([]LineItemRef{{ProductID: ptr(a), Quantity: 2}, {CustomBlendID: ptr(b), Quantity: 1}}, addr, &otherRate) == first {
		t.Fatalf("shipping rate change must alter the fingerprint")
	}
}
