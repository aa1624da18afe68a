package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/skalibog/hypetrader/pkg/models"
)

// Format формат выгрузки сделок
type Format string

const (
	CSV  Format = "csv"
	JSON Format = "json"
)

var header = []string{"instrument", "venue", "side", "entry", "exit", "pnl", "opened_at", "closed_at"}

// Record запись выгрузки одной закрытой сделки
type Record struct {
	Instrument string    `json:"instrument"`
	Venue      string    `json:"venue"`
	Side       string    `json:"side"`
	Entry      float64   `json:"entry"`
	Exit       float64   `json:"exit"`
	PnL        float64   `json:"pnl"`
	OpenedAt   time.Time `json:"opened_at"`
	ClosedAt   time.Time `json:"closed_at"`
}

// NewRecord переводит сделку в запись выгрузки
func NewRecord(t models.Trade) Record {
	return Record{
		Instrument: t.Instrument,
		Venue:      t.Venue,
		Side:       string(t.Side),
		Entry:      t.Entry,
		Exit:       t.Exit,
		PnL:        t.PnL,
		OpenedAt:   t.OpenedAt.UTC(),
		ClosedAt:   t.ClosedAt.UTC(),
	}
}

// FormatFor определяет формат по расширению файла
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return CSV, nil
	case ".json":
		return JSON, nil
	default:
		return "", fmt.Errorf("неизвестный формат выгрузки %q, ожидается .csv или .json", path)
	}
}

// WriteFile записывает сделки в файл. Файл создается рядом и переименовывается
// после успешной записи, поэтому частичной выгрузки не остается.
func WriteFile(path string, trades []models.Trade) error {
	format, err := FormatFor(path)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".trades-*")
	if err != nil {
		return fmt.Errorf("ошибка создания файла выгрузки: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Write(tmp, format, trades); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("ошибка записи файла выгрузки: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("ошибка сохранения файла выгрузки: %w", err)
	}
	return nil
}

// Write записывает сделки в w в заданном формате
func Write(w io.Writer, format Format, trades []models.Trade) error {
	records := make([]Record, len(trades))
	for i, t := range trades {
		records[i] = NewRecord(t)
	}

	switch format {
	case CSV:
		return writeCSV(w, records)
	case JSON:
		data, err := sonic.ConfigStd.MarshalIndent(records, "", "  ")
		if err != nil {
			return fmt.Errorf("ошибка сериализации сделок: %w", err)
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("ошибка записи сделок: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("неизвестный формат выгрузки %q", format)
	}
}

// Read читает записи выгрузки
func Read(r io.Reader, format Format) ([]Record, error) {
	switch format {
	case CSV:
		return readCSV(r)
	case JSON:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения выгрузки: %w", err)
		}
		var records []Record
		if err := sonic.ConfigStd.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("ошибка разбора выгрузки: %w", err)
		}
		return records, nil
	default:
		return nil, fmt.Errorf("неизвестный формат выгрузки %q", format)
	}
}

// ReadFile читает выгрузку из файла, формат определяется по расширению
func ReadFile(path string) ([]Record, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия выгрузки: %w", err)
	}
	defer f.Close()
	return Read(f, format)
}

func writeCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("ошибка записи заголовка: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.Instrument,
			r.Venue,
			r.Side,
			formatFloat(r.Entry),
			formatFloat(r.Exit),
			formatFloat(r.PnL),
			r.OpenedAt.Format(time.RFC3339Nano),
			r.ClosedAt.Format(time.RFC3339Nano),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("ошибка записи сделки: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func readCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(header)

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора выгрузки: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	records := make([]Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rec := Record{Instrument: row[0], Venue: row[1], Side: row[2]}

		floats := []*float64{&rec.Entry, &rec.Exit, &rec.PnL}
		for j, dst := range floats {
			v, err := strconv.ParseFloat(row[3+j], 64)
			if err != nil {
				return nil, fmt.Errorf("строка %d, поле %s: %w", i+2, header[3+j], err)
			}
			*dst = v
		}

		times := []*time.Time{&rec.OpenedAt, &rec.ClosedAt}
		for j, dst := range times {
			v, err := time.Parse(time.RFC3339Nano, row[6+j])
			if err != nil {
				return nil, fmt.Errorf("строка %d, поле %s: %w", i+2, header[6+j], err)
			}
			*dst = v.UTC()
		}

		records = append(records, rec)
	}
	return records, nil
}

// formatFloat кратчайшее представление, которое читается обратно без потерь
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
