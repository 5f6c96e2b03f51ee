package cmd

import (
	"strings"
)

const barcodeKitNone = "none"

// option maps a user-facing name to the guppy arguments it selects.
type option struct {
	Name string
	Args []string
}

// optionTable is an ordered, read-only set of options. Keys are matched
// case-insensitively.
type optionTable struct {
	kind    string
	options []option
}

func newOptionTable(kind string, options ...option) optionTable {
	return optionTable{kind: kind, options: options}
}

func (t optionTable) lookup(name string) ([]string, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, o := range t.options {
		if o.Name == key {
			return append([]string(nil), o.Args...), true
		}
	}
	return nil, false
}

func (t optionTable) has(name string) bool {
	_, ok := t.lookup(name)
	return ok
}

func (t optionTable) names() []string {
	out := make([]string, 0, len(t.options))
	for _, o := range t.options {
		out = append(out, o.Name)
	}
	return out
}

// tables bundles the chemistry and barcode-kit lookups handed to the
// validator and the guppy command builder.
type tables struct {
	Chemistry optionTable
	Barcodes  optionTable
}

func chemistryOption(name, cfg string) option {
	return option{Name: name, Args: []string{"--config", cfg}}
}

func barcodeOption(name, kits string) option {
	return option{Name: name, Args: []string{"--barcode_kits", kits}}
}

func defaultTables() tables {
	return tables{
		Chemistry: newOptionTable("basecalling model",
			chemistryOption("r9.4.1_fast", "dna_r9.4.1_450bps_fast.cfg"),
			chemistryOption("r9.4.1_hac", "dna_r9.4.1_450bps_hac.cfg"),
			chemistryOption("r9.4.1_sup", "dna_r9.4.1_450bps_sup.cfg"),
			chemistryOption("r9.5", "dna_r9.5_450bps.cfg"),
			chemistryOption("r10_fast", "dna_r10_450bps_fast.cfg"),
			chemistryOption("r10_hac", "dna_r10_450bps_hac.cfg"),
			chemistryOption("r10.4_sup", "dna_r10.4_e8.1_sup.cfg"),
			chemistryOption("r10.4.1_sup", "dna_r10.4.1_e8.2_400bps_sup.cfg"),
			chemistryOption("r10.4.1_260bps_sup", "dna_r10.4.1_e8.2_260bps_sup.cfg"),
		),
		Barcodes: newOptionTable("barcode kit",
			option{Name: barcodeKitNone, Args: []string{"--disable_trim_barcodes"}},
			barcodeOption("native_1-12", "EXP-NBD104"),
			barcodeOption("native_13-24", "EXP-NBD114"),
			barcodeOption("native_1-24", "EXP-NBD104 EXP-NBD114"),
			barcodeOption("native_1-24_r104", "SQK-NBD112-24"),
			barcodeOption("native_1-24_r1041", "SQK-NBD114-24"),
			barcodeOption("native_1-96", "EXP-NBD196"),
			barcodeOption("rapid_1-12", "SQK-RBK004"),
		),
	}
}

// joinWithOr renders choices as "a, b or c".
func joinWithOr(values []string) string {
	switch len(values) {
	case 0:
		return ""
	case 1:
		return values[0]
	}
	return strings.Join(values[:len(values)-1], ", ") + " or " + values[len(values)-1]
}
