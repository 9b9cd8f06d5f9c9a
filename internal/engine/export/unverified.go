package export

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"otpreport/internal/engine/otpstats"
)

const timestampLayout = "2006-01-02 15:04:05.000"

// FileName encodes the queried day, or both ends of a range.
func FileName(rng otpstats.DateRange) string {
	if rng.IsSingleDay() {
		return fmt.Sprintf("unverified_users_%s.csv", rng.Start.Format(otpstats.DateLayout))
	}
	return fmt.Sprintf("unverified_users_%s_to_%s.csv",
		rng.Start.Format(otpstats.DateLayout), rng.End.Format(otpstats.DateLayout))
}

type Exporter struct {
	events otpstats.EventStore
	dir    string
}

func NewExporter(events otpstats.EventStore, dir string) *Exporter {
	return &Exporter{events: events, dir: dir}
}

// Export writes the unverified OTP documents of rng to a new CSV file and
// returns its path and row count. No file is written when nothing matches.
func (e *Exporter) Export(ctx context.Context, rng otpstats.DateRange) (string, int, error) {
	docs, err := e.events.FindUnverified(ctx, rng)
	if err != nil {
		return "", 0, err
	}
	if len(docs) == 0 {
		log.Info().Str("range", rng.String()).Msg("no unverified users found")
		return "", 0, nil
	}

	path := filepath.Join(e.dir, FileName(rng))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", 0, fmt.Errorf("export file %s already exists", path)
		}
		return "", 0, fmt.Errorf("create export file: %w", err)
	}

	if err := WriteCSV(f, docs); err != nil {
		f.Close()
		os.Remove(path)
		return "", 0, err
	}
	if err := f.Close(); err != nil {
		return "", 0, fmt.Errorf("close export file: %w", err)
	}

	log.Info().Str("file", path).Int("rows", len(docs)).Msg("csv file saved")
	return path, len(docs), nil
}

// WriteCSV writes one row per document. Columns are the union of field names
// in the order they are first seen; absent fields are left empty.
func WriteCSV(w io.Writer, docs []bson.D) error {
	var columns []string
	position := make(map[string]int)
	for _, doc := range docs {
		for _, elem := range doc {
			if _, ok := position[elem.Key]; !ok {
				position[elem.Key] = len(columns)
				columns = append(columns, elem.Key)
			}
		}
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	record := make([]string, len(columns))
	for _, doc := range docs {
		for i := range record {
			record[i] = ""
		}
		for _, elem := range doc {
			cell, err := formatValue(elem.Value)
			if err != nil {
				return fmt.Errorf("format field %s: %w", elem.Key, err)
			}
			record[position[elem.Key]] = cell
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatValue(v interface{}) (string, error) {
	switch val := v.(type) {
	case nil, primitive.Null, primitive.Undefined:
		return "", nil
	case string:
		return val, nil
	case bool:
		return strconv.FormatBool(val), nil
	case int32:
		return strconv.FormatInt(int64(val), 10), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case primitive.ObjectID:
		return val.Hex(), nil
	case primitive.DateTime:
		return val.Time().UTC().Format(timestampLayout), nil
	case time.Time:
		return val.UTC().Format(timestampLayout), nil
	case primitive.Decimal128:
		return val.String(), nil
	case bson.D, bson.M, bson.A:
		out, err := bson.MarshalExtJSON(bson.D{{Key: "v", Value: val}}, false, false)
		if err != nil {
			return "", err
		}
		// Strip the {"v": ...} wrapper MarshalExtJSON needs for non-documents.
		return string(out[len(`{"v":`) : len(out)-1]), nil
	default:
		return fmt.Sprint(val), nil
	}
}
