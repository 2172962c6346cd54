package ingest

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/tinytelemetry/onuwatch/internal/model"
	"github.com/tinytelemetry/onuwatch/internal/region"
	"github.com/tinytelemetry/onuwatch/internal/sheet"
	"github.com/tinytelemetry/onuwatch/internal/timestamp"
)

// Canonical column names produced by header aliasing.
const (
	colClientName     = "nome_cliente"
	colSerial         = "serial_onu"
	colRegion         = "olt_regiao"
	colStatus         = "status_conexao"
	colDisconnectedAt = "data_desconexao"
	colCTO            = "cto"
	colSlotPonOnu     = "slot_pon_onu"
	colModel          = "modelo_onu"
	colRxONU          = "rx_onu"
	colRxOLT          = "rx_olt"
	colDistance       = "distancia_m"
)

// columnAliases lists, per canonical column, the normalized header names
// accepted for it. The canonical name itself is always tried first, then the
// aliases in order; the first present wins.
var columnAliases = []struct {
	canonical string
	aliases   []string
}{
	{colClientName, []string{"cliente"}},
	{colSerial, []string{"sn_onu"}},
	{colRegion, []string{"olt"}},
	{colStatus, []string{"status"}},
	{colDisconnectedAt, []string{"ultima_alteracao_de_status", "ultima_atualizacao_de_sinal", "ultima_comunicacao"}},
	{colCTO, []string{"cto"}},
	{colSlotPonOnu, []string{"slotpononu_id"}},
	{colModel, []string{"modelo"}},
	{colRxONU, []string{"rx_onu"}},
	{colRxOLT, []string{"rx_olt"}},
	{colDistance, []string{"distancia_entre_olt_e_onu_m"}},
}

// offlineStatuses are the status values, trimmed and upper-cased, of devices
// that are offline.
var offlineStatuses = map[string]struct{}{
	"LOSS":        {},
	"SEM ENERGIA": {},
}

// MissingColumnsDetail is the job error detail for reports without the
// status or date columns.
const MissingColumnsDetail = "O arquivo deve conter colunas para 'Status' e data (ex: 'Última Alteração')."

// ErrMissingColumns is returned when a report lacks the status or date column.
var ErrMissingColumns = errors.New(MissingColumnsDetail)

// NormalizeHeader folds a column title to its comparable form: accents are
// stripped, letters lower-cased, spaces and dashes become underscores and
// parentheses are removed.
func NormalizeHeader(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII
	})))
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(strings.TrimSpace(folded))
	return strings.NewReplacer(" ", "_", "-", "_", "(", "", ")", "").Replace(folded)
}

// Normalized is the outcome of normalizing one report.
type Normalized struct {
	Records []model.Record
	Total   int // data rows in the report
	Offline int // rows with an offline status
	Skipped int // offline rows dropped for a missing serial or bad date
}

// Normalizer turns report rows into offline-client records.
type Normalizer struct {
	parser  *timestamp.Parser
	regions *region.Map
	now     func() time.Time
}

// NewNormalizer creates a Normalizer. A nil regions uses the built-in map.
func NewNormalizer(regions *region.Map, now func() time.Time) *Normalizer {
	if regions == nil {
		regions = region.Builtin()
	}
	if now == nil {
		now = time.Now
	}
	return &Normalizer{parser: timestamp.NewParser(), regions: regions, now: now}
}

// columnIndex maps canonical column names to their position in header.
func columnIndex(header []string) map[string]int {
	present := make(map[string]int, len(header))
	for i, h := range header {
		name := NormalizeHeader(h)
		if _, dup := present[name]; !dup && name != "" {
			present[name] = i
		}
	}

	index := make(map[string]int, len(columnAliases))
	for _, c := range columnAliases {
		for _, name := range append([]string{c.canonical}, c.aliases...) {
			if i, ok := present[name]; ok {
				index[c.canonical] = i
				break
			}
		}
	}
	return index
}

// Normalize converts the offline rows of t into records for jobID. Hours
// offline are computed against the normalizer clock once per call.
func (n *Normalizer) Normalize(t *sheet.Table, jobID string) (Normalized, error) {
	index := columnIndex(t.Header)
	_, hasStatus := index[colStatus]
	_, hasDate := index[colDisconnectedAt]
	if !hasStatus || !hasDate {
		return Normalized{}, ErrMissingColumns
	}

	now := n.now().UTC()
	out := Normalized{Total: len(t.Rows), Records: make([]model.Record, 0, len(t.Rows))}

	cell := func(row []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	for _, row := range t.Rows {
		status := cell(row, colStatus)
		if _, offline := offlineStatuses[strings.ToUpper(status)]; !offline {
			continue
		}
		out.Offline++

		serial := cell(row, colSerial)
		disconnected, ok := n.parser.Parse(cell(row, colDisconnectedAt))
		if serial == "" || !ok {
			out.Skipped++
			continue
		}

		olt := cell(row, colRegion)
		out.Records = append(out.Records, model.Record{
			ClientName:     cell(row, colClientName),
			Serial:         serial,
			Region:         olt,
			HoursOffline:   timestamp.HoursSince(disconnected, now),
			DisconnectedAt: disconnected,
			City:           n.regions.City(olt),
			Reason:         status,
			CTO:            cell(row, colCTO),
			SlotPonOnu:     cell(row, colSlotPonOnu),
			Model:          cell(row, colModel),
			RxONU:          parseFloat(cell(row, colRxONU)),
			RxOLT:          parseFloat(cell(row, colRxOLT)),
			DistanceM:      parseInt(cell(row, colDistance)),
			JobID:          jobID,
		})
	}
	return out, nil
}

// parseFloat accepts a comma decimal separator. Empty, invalid and
// non-finite values return nil.
func parseFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func parseInt(s string) *int64 {
	f := parseFloat(s)
	if f == nil || math.Abs(*f) > 1e15 {
		return nil
	}
	v := int64(math.Round(*f))
	return &v
}
