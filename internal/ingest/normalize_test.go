package ingest

import (
	"errors"
	"testing"
	"time"

	"github.com/tinytelemetry/onuwatch/internal/region"
	"github.com/tinytelemetry/onuwatch/internal/sheet"
)

func TestNormalizeHeader(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Cliente", "cliente"},
		{"SN ONU", "sn_onu"},
		{"  Status  ", "status"},
		{"Última Alteração de Status", "ultima_alteracao_de_status"},
		{"Última Atualização de Sinal", "ultima_atualizacao_de_sinal"},
		{"Distância entre OLT e ONU (m)", "distancia_entre_olt_e_onu_m"},
		{"RX-ONU", "rx_onu"},
		{"Modelo", "modelo"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := NormalizeHeader(tt.input); got != tt.expected {
				t.Errorf("NormalizeHeader(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func fixedNow() time.Time {
	return time.Date(2024, 1, 12, 8, 0, 0, 0, time.UTC)
}

func TestNormalize_OfflineRows(t *testing.T) {
	n := NewNormalizer(region.Builtin(), fixedNow)
	table := &sheet.Table{
		Header: []string{"Cliente", "SN ONU", "OLT", "Status", "Última Alteração de Status", "RX ONU", "RX OLT", "Distância entre OLT e ONU (m)", "CTO", "Modelo"},
		Rows: [][]string{
			{"Ana", " ZTEG001 ", "OLT-LDB-HUAWEI-DC", "LOSS", "10/01/2024 08:00", "-27,5", "inf", "1830", "CTO-12", "F670L"},
			{"Bia", "", "OLT-MGF-ZTE-SERENITY-02", "Sem Energia", "10/01/2024 09:00", "", "", "", "", ""},
			{"Caio", "ZTEG003", "OLT-DESCONHECIDA", " sem energia ", "2024-01-11 10:00:00", "abc", "-20.1", "12.6", "", ""},
			{"Davi", "ZTEG004", "OLT-LDB-HUAWEI-DC", "ONLINE", "2024-01-11 10:00:00", "", "", "", "", ""},
			{"Eva", "ZTEG005", "OLT-LDB-HUAWEI-DC", "LOSS", "amanhã", "", "", "", "", ""},
		},
	}

	got, err := n.Normalize(table, "job-1")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got.Total != 5 || got.Offline != 4 || got.Skipped != 2 {
		t.Errorf("counts = total %d offline %d skipped %d, want 5/4/2", got.Total, got.Offline, got.Skipped)
	}
	if len(got.Records) != 2 {
		t.Fatalf("records = %d, want 2", len(got.Records))
	}

	ana := got.Records[0]
	if ana.Serial != "ZTEG001" || ana.ClientName != "Ana" || ana.JobID != "job-1" {
		t.Errorf("ana = %+v", ana)
	}
	if ana.HoursOffline != 48 {
		t.Errorf("ana hours = %d, want 48", ana.HoursOffline)
	}
	if !ana.DisconnectedAt.Equal(time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)) {
		t.Errorf("ana disconnected = %v", ana.DisconnectedAt)
	}
	if ana.City != "Londrina" || ana.Reason != "LOSS" || ana.CTO != "CTO-12" || ana.Model != "F670L" {
		t.Errorf("ana derived fields = %+v", ana)
	}
	if ana.RxONU == nil || *ana.RxONU != -27.5 {
		t.Errorf("ana rx_onu = %v, want -27.5", ana.RxONU)
	}
	if ana.RxOLT != nil {
		t.Errorf("ana rx_olt = %v, want nil for non-finite", *ana.RxOLT)
	}
	if ana.DistanceM == nil || *ana.DistanceM != 1830 {
		t.Errorf("ana distance = %v, want 1830", ana.DistanceM)
	}

	caio := got.Records[1]
	if caio.HoursOffline != 22 || caio.City != region.DefaultCity || caio.Reason != "sem energia" {
		t.Errorf("caio = hours %d city %q reason %q", caio.HoursOffline, caio.City, caio.Reason)
	}
	if caio.RxONU != nil || caio.RxOLT == nil || caio.DistanceM == nil || *caio.DistanceM != 13 {
		t.Errorf("caio numeric fields = %v %v %v", caio.RxONU, caio.RxOLT, caio.DistanceM)
	}
}

func TestNormalize_AlternateDateColumns(t *testing.T) {
	n := NewNormalizer(nil, fixedNow)
	for _, header := range []string{"Ultima Comunicacao", "Última Atualização de Sinal", "data_desconexao"} {
		table := &sheet.Table{
			Header: []string{"serial_onu", "Status", header},
			Rows:   [][]string{{"ZTEG1", "LOSS", "2024-01-09T08:00:00Z"}},
		}
		got, err := n.Normalize(table, "job")
		if err != nil {
			t.Fatalf("Normalize with %q: %v", header, err)
		}
		if len(got.Records) != 1 || got.Records[0].HoursOffline != 72 {
			t.Errorf("header %q: records = %+v", header, got.Records)
		}
	}
}

func TestNormalize_MissingColumns(t *testing.T) {
	n := NewNormalizer(nil, fixedNow)
	tests := [][]string{
		{"Cliente", "SN ONU", "Status"},
		{"Cliente", "SN ONU", "Última Alteração de Status"},
	}
	for _, header := range tests {
		_, err := n.Normalize(&sheet.Table{Header: header}, "job")
		if !errors.Is(err, ErrMissingColumns) {
			t.Errorf("header %v: err = %v, want ErrMissingColumns", header, err)
		}
	}
}

func TestNormalize_ShortRows(t *testing.T) {
	n := NewNormalizer(nil, fixedNow)
	table := &sheet.Table{
		Header: []string{"Status", "Ultima Comunicacao", "SN ONU"},
		Rows:   [][]string{{"LOSS", "2024-01-11 08:00"}},
	}
	got, err := n.Normalize(table, "job")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got.Skipped != 1 || len(got.Records) != 0 {
		t.Errorf("got = %+v, want the row skipped for missing serial", got)
	}
}
