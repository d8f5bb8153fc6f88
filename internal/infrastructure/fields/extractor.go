package fields

import (
	_ "embed"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/invoice-agent/internal/core/domain"
)

//go:embed catalog.yaml
var defaultCatalog []byte

const (
	landRateMarker  = "land rate for"
	landRateService = "Annual Land rates"

	rentService      = "County Rents"
	houseSubservice  = "County Houses"
	stallSubservice  = "County Market Stalls"
	columnCustomer   = "Customer Name"
	columnInvoiceNo  = "Invoice No"
	columnTotal      = "Total Amount"
	columnHouseStall = "House/Stall No."
)

var (
	whitespacePattern = regexp.MustCompile(`\s+`)
	customerPattern   = regexp.MustCompile(`(?i)(?:client|name)[\s:]+(.+?)(?:\s+(?:invoice|bill|application)[\s:]|$)`)
	invoicePattern    = regexp.MustCompile(`(?i)(?:invoice|bill)\s*(?:no|number)[\s:]*([A-Za-z0-9_\-]+)`)
	amountPattern     = regexp.MustCompile(`(?i)(?:total|amount due|balance|grand total|bill total amount)[\s:]*\$?([\d,]+\.\d{2})\b`)
	dateTimePattern   = regexp.MustCompile(`(?i)date[\s&]*time[\s:]*([\d/]+\s+\d{1,2}:\d{2}\s*(?:AM|PM))`)
)

type Service struct {
	Name        string   `yaml:"name"`
	SubServices []string `yaml:"sub_services"`
}

type Catalog struct {
	Services []Service `yaml:"services"`
}

func ParseCatalog(raw []byte) (Catalog, error) {
	var catalog Catalog
	if err := yaml.Unmarshal(raw, &catalog); err != nil {
		return Catalog{}, fmt.Errorf("decode service catalog: %w", err)
	}
	if len(catalog.Services) == 0 {
		return Catalog{}, fmt.Errorf("decode service catalog: no services")
	}
	return catalog, nil
}

type Extractor struct {
	catalog Catalog
}

// NewExtractor uses the embedded catalog when none is given.
func NewExtractor(catalog *Catalog) (*Extractor, error) {
	if catalog != nil {
		return &Extractor{catalog: *catalog}, nil
	}
	parsed, err := ParseCatalog(defaultCatalog)
	if err != nil {
		return nil, err
	}
	return &Extractor{catalog: parsed}, nil
}

// Extract keeps the original case because invoice numbers are case-sensitive.
func (e *Extractor) Extract(text string) domain.InvoiceFields {
	normalized := strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))

	fields := domain.InvoiceFields{
		Ticket:       domain.DaemonTicket,
		RecordType:   domain.InvoiceRecordType,
		Name:         firstGroup(customerPattern, normalized),
		RecordNumber: firstGroup(invoicePattern, normalized),
		Value:        firstGroup(amountPattern, normalized),
		Date:         firstGroup(dateTimePattern, normalized),
	}
	fields.Service, fields.Subservice = e.classify(strings.ToLower(normalized))
	return fields
}

func (e *Extractor) ExtractRow(row map[string]string) domain.InvoiceFields {
	value, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(row[columnTotal]), ",", ""), 64)
	if err != nil {
		value = 0
	}

	subservice := stallSubservice
	if strings.Contains(strings.ToLower(row[columnHouseStall]), "house") {
		subservice = houseSubservice
	}

	return domain.InvoiceFields{
		Ticket:       domain.DaemonTicket,
		RecordType:   domain.InvoiceRecordType,
		Name:         strings.TrimSpace(row[columnCustomer]),
		RecordNumber: strings.TrimSpace(row[columnInvoiceNo]),
		Service:      rentService,
		Subservice:   subservice,
		Value:        strconv.FormatFloat(value, 'f', -1, 64),
	}
}

func (e *Extractor) classify(lower string) (service, subservice string) {
	if strings.Contains(lower, landRateMarker) {
		if svc, ok := e.serviceOf(landRateService); ok {
			return svc, landRateService
		}
	}
	for _, svc := range e.catalog.Services {
		for _, sub := range svc.SubServices {
			if strings.Contains(lower, strings.ToLower(sub)) {
				return svc.Name, sub
			}
		}
	}
	return "", ""
}

func (e *Extractor) serviceOf(subservice string) (string, bool) {
	for _, svc := range e.catalog.Services {
		for _, sub := range svc.SubServices {
			if strings.EqualFold(sub, subservice) {
				return svc.Name, true
			}
		}
	}
	return "", false
}

func firstGroup(pattern *regexp.Regexp, text string) string {
	match := pattern.FindStringSubmatch(text)
	if len(match) < 2 {
		return ""
	}
	return strings.TrimSpace(match[1])
}
