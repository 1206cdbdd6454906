package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/clinical"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/domain/record"
)

const (
	ReportTitle = "Oral Cancer Detection Report"
	Footer      = "Developed under JITD"

	imageNotFound      = "Image not found"
	featurePending     = "This Feature is under Development..."
	highRiskSummaryFmt = "Based on the uploaded image and provided symptoms, the system predicts a HIGH RISK of oral cancer. " +
		"Clinical observation suggests the lesion is located at %s, with a surface described as %s " +
		"and coloration as %s. The approximate size is %s, and the suggested stage is %s. " +
		"It is strongly recommended to consult a specialist for further evaluation and management."
	lowRiskSummary = "Based on the uploaded image and provided symptoms, the system predicts a LOW RISK of oral cancer. " +
		"No alarming features were detected in the clinical observation. " +
		"Continue regular monitoring and consult a healthcare provider if symptoms persist or worsen."
)

var (
	valueColumns = []Column{{Header: "Parameter", Width: 60}, {Header: "Value", Width: 120}}
	obsColumns   = []Column{{Header: "Parameter", Width: 60}, {Header: "Observation", Width: 120}}
	imageColumns = []Column{{Header: "Parameter", Width: 60}, {Header: "Image", Width: 120}}

	observationParams = []string{"Location", "Coloration", "Surface", "Approximate Size", "Suggested Stage"}
)

// PatientMeta is optional identifying data typed into the report form.
type PatientMeta struct {
	Name    string
	DOB     string
	Age     string
	Sex     string
	Address string
}

func (m PatientMeta) rows() [][]string {
	var rows [][]string
	for _, f := range []struct{ label, value string }{
		{"Name", m.Name},
		{"Date of Birth", m.DOB},
		{"Age", m.Age},
		{"Sex", m.Sex},
		{"Address", m.Address},
	} {
		if v := strings.TrimSpace(f.value); v != "" {
			rows = append(rows, []string{f.label, v})
		}
	}
	return rows
}

// Input is everything Build needs. Details is only used for risk records.
// Image is a JPEG; nil renders the not-found placeholder.
type Input struct {
	Record  *record.Record
	Meta    PatientMeta
	Details *clinical.Details
	Image   []byte
}

func Build(in Input) Document {
	rec := in.Record
	details := in.Details
	if !rec.IsRisk() {
		details = nil
	}

	first := Page{Bordered: true}
	first.add(
		Title{Text: ReportTitle},
		Spacer{Height: 10},
		Rule{},
		Spacer{Height: 10},
	)
	if rows := in.Meta.rows(); len(rows) > 0 {
		first.add(Table{Caption: "Patient Details", Columns: valueColumns, Rows: rows}, Spacer{Height: 5})
	}
	first.add(
		Table{Caption: "Prediction Results", Columns: valueColumns, Rows: predictionRows(rec)},
		Spacer{Height: 15},
		Table{Caption: "Clinical Observation", Columns: obsColumns, Rows: observationRows(details)},
	)

	second := Page{Bordered: true}
	second.add(
		Spacer{Height: 12},
		Heading{Text: "Summary"},
		Spacer{Height: 5},
		Paragraph{Text: summary(details)},
		Spacer{Height: 8},
		Heading{Text: "Patient Uploads"},
		Spacer{Height: 2},
		ImageTable{
			Caption: "Patient Uploaded Image",
			Columns: imageColumns,
			Rows: []ImageRow{
				{Label: "Uploaded image", Image: in.Image, Fallback: imageNotFound},
				{Label: "Detected lesion pattern", Fallback: featurePending, FallbackItalic: true},
			},
		},
	)
	if details != nil {
		second.add(Spacer{Height: 4}, Paragraph{Text: details.Disclaimer(), Italic: true, Size: 9})
	}

	return Document{Footer: Footer, Pages: []Page{first, second}}
}

func (p *Page) add(blocks ...Block) {
	p.Blocks = append(p.Blocks, blocks...)
}

func predictionRows(rec *record.Record) [][]string {
	s := rec.Symptoms

	habits := "None"
	if len(s.Habits) > 0 {
		habits = strings.Join(s.Habits, ", ")
	}

	rows := [][]string{
		{"Prediction", string(rec.Prediction)},
		{"Confidence", strconv.FormatFloat(rec.Confidence, 'f', -1, 64) + "%"},
		{"Pain Level", orDash(s.PainLevel)},
		{"Bleeding", orDash(s.Bleeding)},
		{"Swelling", orDash(s.Swelling)},
		{"Duration", orDash(s.Duration)},
		{"History", orDash(s.History)},
		{"Habits", habits},
	}
	if s.HasHabit(record.HabitTobacco) {
		rows = append(rows, []string{"Tobacco Years", s.TobaccoYears})
	}
	if s.HasHabit(record.HabitAlcohol) {
		rows = append(rows, []string{"Alcohol Years", s.AlcoholYears})
	}
	if s.HasHabit(record.HabitSmoking) {
		rows = append(rows, []string{"Smoking Years", s.SmokingYears})
	}
	return append(rows,
		[]string{"3 Finger Trismus Test", orDefault(s.TrismusTest, "Not answered")},
		[]string{"Pain Opening Mouth", orDefault(s.MouthPain, "Not answered")},
		[]string{"Extra Details", orDefault(s.ExtraDetails, "None")},
	)
}

func observationRows(d *clinical.Details) [][]string {
	if d == nil {
		rows := make([][]string, len(observationParams))
		for i, p := range observationParams {
			rows[i] = []string{p, "-"}
		}
		return rows
	}
	return [][]string{
		{"Location", d.Location},
		{"Coloration", d.Coloration},
		{"Surface", d.Surface},
		{"Approximate Size", d.Size},
		{"Suggested Stage", d.Stage},
	}
}

func summary(d *clinical.Details) string {
	if d == nil {
		return lowRiskSummary
	}
	return fmt.Sprintf(highRiskSummaryFmt, d.Location, d.Surface, d.Coloration, d.Size, d.Stage)
}

func orDash(s string) string {
	return orDefault(s, "-")
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
