package domain

import (
	"errors"
	"strings"
)

const (
	DaemonTicket      = "T-DAEMON"
	InvoiceRecordType = "invoice"
)

type InvoiceFields struct {
	Ticket       string `json:"ticket"`
	RecordType   string `json:"recordType"`
	Name         string `json:"name,omitempty"`
	RecordNumber string `json:"recordNumber,omitempty"`
	Service      string `json:"service,omitempty"`
	Subservice   string `json:"subservice,omitempty"`
	Value        string `json:"value,omitempty"`
	Date         string `json:"date,omitempty"`
}

// Validate reports every missing required field in one error.
func (f InvoiceFields) Validate() error {
	var missing []string
	if f.Name == "" {
		missing = append(missing, "Customer Name")
	}
	if f.Value == "" {
		missing = append(missing, "Total Amount")
	}
	if f.RecordNumber == "" {
		missing = append(missing, "Record Number")
	}
	if f.Service == "" {
		missing = append(missing, "Service")
	}
	if f.Subservice == "" {
		missing = append(missing, "Sub Service")
	}
	if len(missing) == 0 {
		return nil
	}
	return WrapError(ErrInvalidInput, "validate invoice fields",
		errors.New("missing required fields: "+strings.Join(missing, ", ")))
}

type SubmissionKind string

const (
	SubmissionPDF   SubmissionKind = "pdf"
	SubmissionExcel SubmissionKind = "excel"
)

type Submission struct {
	Type     SubmissionKind  `json:"type"`
	FileName string          `json:"fileName"`
	Content  any             `json:"content"`
	Fields   []InvoiceFields `json:"fields,omitempty"`
}

type SubmissionResult struct {
	Message   string `json:"message"`
	Duplicate bool   `json:"-"`
}
