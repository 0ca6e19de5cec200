package domain

import "testing"

func TestCartSnapshot(t *testing.T) {
	cart := &Cart{
		UserID: "user-1",
		Items: []CartItem{
			{ProductID: "p1", Name: "Tee", Price: 150000, Quantity: 2, Size: "M"},
			{ProductID: "p2", Name: "Hoodie", Price: 380000, Quantity: 1, Size: "L"},
		},
		TotalAmount: 1,
	}

	items := cart.Snapshot()

	if got := ItemsTotal(items); got != 680000 {
		t.Fatalf("expected total 680000, got %d", got)
	}

	cart.Items[0].Price = 1
	cart.Items[0].Quantity = 9
	if items[0].UnitPrice != 150000 || items[0].Quantity != 2 {
		t.Errorf("snapshot followed cart edit: %+v", items[0])
	}

	if empty := (&Cart{}).Snapshot(); empty == nil || len(empty) != 0 {
		t.Errorf("expected empty non-nil snapshot, got %#v", empty)
	}
}

func TestShippingAddressComplete(t *testing.T) {
	full := ShippingAddress{FullName: "Nguyen Van A", Address: "12 Ly Thuong Kiet", City: "Ha Noi", Phone: "0901234567"}

	tests := []struct {
		name   string
		modify func(a *ShippingAddress)
		want   bool
	}{
		{"all fields", func(*ShippingAddress) {}, true},
		{"missing name", func(a *ShippingAddress) { a.FullName = "" }, false},
		{"blank city", func(a *ShippingAddress) { a.City = "   " }, false},
		{"missing phone", func(a *ShippingAddress) { a.Phone = "" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := full
			tt.modify(&a)
			if got := a.Complete(); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestProductHasSize(t *testing.T) {
	p := &Product{Sizes: []string{"S", "M"}}
	if !p.HasSize("M") {
		t.Error("expected M to be offered")
	}
	if p.HasSize("XL") {
		t.Error("expected XL not to be offered")
	}
}
