// Package models defines data structures for the scraper.
package models

// Sentinel marks a field that could not be resolved. Fields are never omitted.
const Sentinel = "N/A"

// Columns is the stable export column order, one per CardRecord field.
var Columns = []string{
	"Car Name",
	"Model",
	"Year",
	"Description",
	"Cross Price",
	"Actual Price",
	"Total",
	"Original Vehicle",
	"Period",
	"Mileage",
	"Insurance & Options",
}

// CardRecord is one rental offer scraped from a listing card and, when
// available, its detail panel.
type CardRecord struct {
	CarName             string `csv:"car_name" json:"car_name"`
	Model               string `csv:"model" json:"model"`
	Year                string `csv:"year" json:"year"`
	Description         string `csv:"description" json:"description"`
	CrossPrice          string `csv:"cross_price" json:"cross_price"`
	ActualPrice         string `csv:"actual_price" json:"actual_price"`
	Total               string `csv:"total" json:"total"`
	OriginalVehicle     string `csv:"original_vehicle" json:"original_vehicle"`
	Period              string `csv:"period" json:"period"`
	Mileage             string `csv:"mileage" json:"mileage"`
	InsuranceAndOptions string `csv:"insurance_and_options" json:"insurance_and_options"`
}

// NewCardRecord returns a record with every field set to Sentinel.
func NewCardRecord() *CardRecord {
	return &CardRecord{
		CarName:             Sentinel,
		Model:               Sentinel,
		Year:                Sentinel,
		Description:         Sentinel,
		CrossPrice:          Sentinel,
		ActualPrice:         Sentinel,
		Total:               Sentinel,
		OriginalVehicle:     Sentinel,
		Period:              Sentinel,
		Mileage:             Sentinel,
		InsuranceAndOptions: Sentinel,
	}
}

// Values returns the field values in Columns order.
func (r *CardRecord) Values() []string {
	return []string{
		r.CarName,
		r.Model,
		r.Year,
		r.Description,
		r.CrossPrice,
		r.ActualPrice,
		r.Total,
		r.OriginalVehicle,
		r.Period,
		r.Mileage,
		r.InsuranceAndOptions,
	}
}

// Map returns the record keyed by column header.
func (r *CardRecord) Map() map[string]string {
	values := r.Values()
	out := make(map[string]string, len(Columns))
	for i, col := range Columns {
		out[col] = values[i]
	}
	return out
}

// ClearDetail resets the detail-panel fields to Sentinel.
func (r *CardRecord) ClearDetail() {
	r.Mileage = Sentinel
	r.InsuranceAndOptions = Sentinel
}
