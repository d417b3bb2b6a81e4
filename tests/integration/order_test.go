//go:build integration

package integration

import (
	"fmt"
	"net/http"
	"regexp"
	"testing"
	"time"
)

var uuidPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// uniqueExternalID keeps test orders from colliding across runs against the
// same compose stack.
func uniqueExternalID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

func TestReceiveOrder(t *testing.T) {
	extID := uniqueExternalID("it-receive")
	req := orderRequest{
		ExternalID: extID,
		Items: []itemRequest{
			{Name: "Widget", Price: "19.90", Quantity: 2},
		},
	}
	resp := doPost(t, "/orders/receive", req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	o := decodeJSON[orderResponse](t, resp)
	if o.ExternalID != extID {
		t.Errorf("externalId: got %q, want %q", o.ExternalID, extID)
	}
	if o.Status != "RECEIVED" {
		t.Errorf("status: got %q, want RECEIVED", o.Status)
	}
	if o.TotalAmount != nil {
		t.Errorf("totalAmount: got %v, want null before calculation", *o.TotalAmount)
	}
	if !uuidPattern.MatchString(o.TraceID) {
		t.Errorf("traceId %q is not a valid UUID", o.TraceID)
	}
	if o.ProcessingMessage != "Order received successfully" {
		t.Errorf("processingMessage: got %q", o.ProcessingMessage)
	}
}

func TestReceiveOrder_EmptyItems(t *testing.T) {
	req := orderRequest{
		ExternalID: uniqueExternalID("it-empty"),
		Items:      []itemRequest{},
	}
	resp := doPost(t, "/orders/receive", req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestReceiveOrder_Duplicate(t *testing.T) {
	extID := uniqueExternalID("it-dup")
	req := orderRequest{
		ExternalID: extID,
		Items:      []itemRequest{{Name: "Widget", Price: "5.00", Quantity: 1}},
	}

	resp := doPost(t, "/orders/receive", req)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("first submission: expected 201, got %d", resp.StatusCode)
	}

	resp2 := doPost(t, "/orders/receive", req)
	defer resp2.Body.Close()

	if resp2.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate submission: expected 409, got %d", resp2.StatusCode)
	}

	body := decodeJSON[errorResponse](t, resp2)
	if body.Message == "" {
		t.Error("error message is empty")
	}
}

func TestReceiveAll(t *testing.T) {
	reqs := []orderRequest{
		{ExternalID: uniqueExternalID("it-batch-a"), Items: []itemRequest{{Name: "A", Price: "1.00", Quantity: 1}}},
		{ExternalID: uniqueExternalID("it-batch-b"), Items: []itemRequest{{Name: "B", Price: "2.00", Quantity: 2}}},
	}
	resp := doPost(t, "/orders/receive/all", reqs)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	saved := decodeJSON[[]orderResponse](t, resp)
	if len(saved) != 2 {
		t.Fatalf("expected 2 saved orders, got %d", len(saved))
	}
}

func TestReceiveAll_PartialFailure(t *testing.T) {
	valid := uniqueExternalID("it-partial")
	reqs := []orderRequest{
		{ExternalID: valid, Items: []itemRequest{{Name: "Kept", Price: "3.00", Quantity: 1}}},
		{ExternalID: uniqueExternalID("it-noitems"), Items: []itemRequest{}},
	}
	resp := doPost(t, "/orders/receive/all", reqs)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	saved := decodeJSON[[]orderResponse](t, resp)
	if len(saved) != 1 {
		t.Fatalf("expected 1 saved order, got %d", len(saved))
	}
	if saved[0].ExternalID != valid {
		t.Errorf("saved externalId: got %q, want %q", saved[0].ExternalID, valid)
	}
}

func TestReceiveAll_EmptyBatch(t *testing.T) {
	resp := doPost(t, "/orders/receive/all", []orderRequest{})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestOrderByExternalID(t *testing.T) {
	resp := doGet(t, "/orders/external-id/demo-0001")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	o := decodeJSON[orderResponse](t, resp)
	if o.ExternalID != "demo-0001" {
		t.Errorf("externalId: got %q, want demo-0001", o.ExternalID)
	}
	if len(o.Items) != 2 {
		t.Errorf("expected 2 items, got %d", len(o.Items))
	}
}

func TestOrderByExternalID_NotFound(t *testing.T) {
	resp := doGet(t, "/orders/external-id/no-such-order")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestOrdersByStatus_Unknown(t *testing.T) {
	resp := doGet(t, "/orders/status/BOGUS")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

// TestOrderIsCalculated submits an order and waits for the scheduled
// recalculation to pick it up. The compose file runs the API with a short
// processor schedule so the transition happens within the polling window.
func TestOrderIsCalculated(t *testing.T) {
	extID := uniqueExternalID("it-calc")
	req := orderRequest{
		ExternalID: extID,
		Items: []itemRequest{
			{Name: "Keyboard", Price: "50.00", Quantity: 2},
			{Name: "Monitor", Price: "100.00", Quantity: 3},
		},
	}
	resp := doPost(t, "/orders/receive", req)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	deadline := time.After(30 * time.Second)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			t.Fatal("order was not calculated within 30s")
		case <-ticker.C:
			resp := doGet(t, "/orders/external-id/"+extID)
			o := decodeJSON[orderResponse](t, resp)
			resp.Body.Close()

			if o.Status != "CALCULATED" {
				continue
			}
			if o.TotalAmount == nil {
				t.Fatal("calculated order has null totalAmount")
			}
			// 50.00*2 + 100.00*3 = 400.00
			if *o.TotalAmount != "400" && *o.TotalAmount != "400.00" {
				t.Fatalf("totalAmount: got %q, want 400.00", *o.TotalAmount)
			}
			if o.ProcessingMessage != "Pedido calculado com sucesso" {
				t.Errorf("processingMessage: got %q", o.ProcessingMessage)
			}
			return
		}
	}
}
