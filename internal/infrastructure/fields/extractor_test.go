package fields

import (
	"testing"

	"github.com/kirillkom/invoice-agent/internal/core/domain"
)

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	extractor, err := NewExtractor(nil)
	if err != nil {
		t.Fatalf("NewExtractor() error: %v", err)
	}
	return extractor
}

func TestExtractParsesInvoiceText(t *testing.T) {
	text := `CITY COUNTY
Client:   Jane   Wanjiku Invoice No: INV-2024_0042
Date & Time: 12/03/2024 10:15 AM
Description: Single Business Permits
Total: $1,250.00`

	got := newTestExtractor(t).Extract(text)
	want := domain.InvoiceFields{
		Ticket:       domain.DaemonTicket,
		RecordType:   domain.InvoiceRecordType,
		Name:         "Jane Wanjiku",
		RecordNumber: "INV-2024_0042",
		Service:      "Single/Unified Business Permits",
		Subservice:   "Single Business Permits",
		Value:        "1,250.00",
		Date:         "12/03/2024 10:15 AM",
	}
	if got != want {
		t.Fatalf("unexpected fields:\n got %#v\nwant %#v", got, want)
	}
	if err := got.Validate(); err != nil {
		t.Fatalf("expected valid fields, got %v", err)
	}
}

func TestExtractLandRateSpecialCase(t *testing.T) {
	got := newTestExtractor(t).Extract("Payment of land rate for plot 209/114 Bill No: LR77 Balance 900.00")
	if got.Service != "Land Rates" || got.Subservice != "Annual Land rates" {
		t.Fatalf("expected land rates classification, got %q / %q", got.Service, got.Subservice)
	}
	if got.RecordNumber != "LR77" || got.Value != "900.00" {
		t.Fatalf("unexpected number/value: %q / %q", got.RecordNumber, got.Value)
	}
}

func TestExtractUnknownTextReportsMissingFields(t *testing.T) {
	got := newTestExtractor(t).Extract("lorem ipsum")
	if got.Ticket != domain.DaemonTicket || got.RecordType != domain.InvoiceRecordType {
		t.Fatalf("expected fixed ticket and record type, got %#v", got)
	}
	err := got.Validate()
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestExtractRow(t *testing.T) {
	extractor := newTestExtractor(t)

	house := extractor.ExtractRow(map[string]string{
		"Customer Name":   " John Doe ",
		"Invoice No":      "R-1",
		"Total Amount":    "4,500.50",
		"House/Stall No.": "House 12B",
	})
	if house.Name != "John Doe" || house.RecordNumber != "R-1" || house.Value != "4500.5" {
		t.Fatalf("unexpected row fields: %#v", house)
	}
	if house.Service != "County Rents" || house.Subservice != "County Houses" {
		t.Fatalf("unexpected classification: %#v", house)
	}

	stall := extractor.ExtractRow(map[string]string{"Total Amount": "n/a", "House/Stall No.": "Stall 4"})
	if stall.Subservice != "County Market Stalls" || stall.Value != "0" {
		t.Fatalf("unexpected stall fields: %#v", stall)
	}
}

func TestCustomCatalog(t *testing.T) {
	catalog, err := ParseCatalog([]byte("services:\n  - name: Parking\n    sub_services: [\"On-street\"]\n"))
	if err != nil {
		t.Fatalf("ParseCatalog() error: %v", err)
	}
	extractor, err := NewExtractor(&catalog)
	if err != nil {
		t.Fatalf("NewExtractor() error: %v", err)
	}
	got := extractor.Extract("fee for ON-STREET parking")
	if got.Service != "Parking" || got.Subservice != "On-street" {
		t.Fatalf("unexpected classification: %#v", got)
	}

	if _, err := ParseCatalog([]byte("services: []")); err == nil {
		t.Fatalf("expected empty catalog to be rejected")
	}
}
