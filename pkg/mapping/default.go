// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package mapping

// DefaultProfile returns the canonical 94 character profile. The provided
// settings are merged over the defaults; processors with their own field
// rules ship as additional named profiles.
//
// Service class and standard entry class codes are settings on purpose:
// they vary by processor and are never guessed by the codec.
func DefaultProfile(settings map[string]string) *Profile {
	merged := map[string]string{
		"serviceClassCode":        "225", // debits only
		"standardEntryClassCode":  "PPD",
		"companyEntryDescription": "SETTLEMNT",
		"companyDiscretionary":    "",
	}
	for k, v := range settings {
		merged[k] = v
	}

	return &Profile{
		Name:        "default",
		Version:     "1",
		RecordWidth: 94,
		Settings:    merged,
		Records: map[RecordType][]Field{
			RecordFileHeader: {
				{Name: "priorityCode", Source: Source{Type: SourceFixed, Value: "01"}},
				{Name: "immediateDestination", Source: Source{Type: SourceSetting, Setting: "destination"},
					Formatters: []Formatter{{Name: "digits"}, {Name: "checkDigit"}, {Name: "padLeft", Width: 10, Fill: " "}}},
				{Name: "immediateOrigin", Source: Source{Type: SourceSetting, Setting: "origin"},
					Formatters: []Formatter{{Name: "digits"}, {Name: "padLeft", Width: 10, Fill: " "}}},
				{Name: "creationDate", Source: Source{Type: SourceComputed, Compute: "creationDate"}},
				{Name: "creationTime", Source: Source{Type: SourceComputed, Compute: "creationTime"}},
				{Name: "fileIDModifier", Source: Source{Type: SourceFixed, Value: "A"}},
				{Name: "recordSize", Source: Source{Type: SourceFixed, Value: "094"}},
				{Name: "blockingFactor", Source: Source{Type: SourceFixed, Value: "10"}},
				{Name: "formatCode", Source: Source{Type: SourceFixed, Value: "1"}},
				{Name: "destinationName", Source: Source{Type: SourceSetting, Setting: "destinationName"},
					Formatters: []Formatter{{Name: "upper"}, {Name: "padRight", Width: 23}}},
				{Name: "originName", Source: Source{Type: SourceSetting, Setting: "originName"},
					Formatters: []Formatter{{Name: "upper"}, {Name: "padRight", Width: 23}}},
				{Name: "referenceCode", Source: Source{Type: SourceFixed, Value: ""},
					Formatters: []Formatter{{Name: "padRight", Width: 8}}},
			},
			RecordBatchHeader: {
				{Name: "serviceClassCode", Source: Source{Type: SourceSetting, Setting: "serviceClassCode"}},
				{Name: "companyName", Source: Source{Type: SourceSetting, Setting: "companyName"},
					Formatters: []Formatter{{Name: "upper"}, {Name: "padRight", Width: 16}}},
				{Name: "companyDiscretionaryData", Source: Source{Type: SourceSetting, Setting: "companyDiscretionary"},
					Formatters: []Formatter{{Name: "padRight", Width: 20}}},
				{Name: "companyIdentification", Source: Source{Type: SourceSetting, Setting: "companyIdentification"},
					Formatters: []Formatter{{Name: "padRight", Width: 10}}},
				{Name: "standardEntryClassCode", Source: Source{Type: SourceSetting, Setting: "standardEntryClassCode"}},
				{Name: "companyEntryDescription", Source: Source{Type: SourceSetting, Setting: "companyEntryDescription"},
					Formatters: []Formatter{{Name: "upper"}, {Name: "padRight", Width: 10}}},
				{Name: "companyDescriptiveDate", Source: Source{Type: SourceComputed, Compute: "creationDate"}},
				{Name: "effectiveEntryDate", Source: Source{Type: SourceComputed, Compute: "creationDate"},
					Formatters: []Formatter{{Name: "settlementDay"}}},
				{Name: "settlementDate", Source: Source{Type: SourceFixed, Value: ""},
					Formatters: []Formatter{{Name: "padRight", Width: 3}}},
				{Name: "originatorStatusCode", Source: Source{Type: SourceFixed, Value: "1"}},
				{Name: "odfiIdentification", Source: Source{Type: SourceSetting, Setting: "routingNumber"},
					Formatters: []Formatter{{Name: "digits"}, {Name: "substr", Start: 0, End: 8}}},
			},
			RecordEntryDetail: {
				{Name: "transactionCode", Source: Source{Type: SourceOrder, Attribute: "debitTransactionCode"}},
				{Name: "rdfiIdentification", Source: Source{Type: SourceOrder, Attribute: "routingNumber"},
					Formatters: []Formatter{{Name: "digits"}, {Name: "checkDigit"}}},
				{Name: "accountNumber", Source: Source{Type: SourceOrder, Attribute: "accountNumber"},
					Formatters: []Formatter{{Name: "padRight", Width: 17}}},
				{Name: "amount", Source: Source{Type: SourceOrder, Attribute: "total"},
					Formatters: []Formatter{{Name: "cents"}}},
				{Name: "individualID", Source: Source{Type: SourceOrder, Attribute: "id"},
					Formatters: []Formatter{{Name: "substr", Start: 0, End: 15}, {Name: "padRight", Width: 15}}},
				{Name: "individualName", Source: Source{Type: SourceOrder, Attribute: "billingName"},
					Formatters: []Formatter{{Name: "upper"}, {Name: "substr", Start: 0, End: 22}, {Name: "padRight", Width: 22}}},
				{Name: "discretionaryData", Source: Source{Type: SourceFixed, Value: ""},
					Formatters: []Formatter{{Name: "padRight", Width: 2}}},
				{Name: "addendaIndicator", Source: Source{Type: SourceFixed, Value: "0"}},
			},
		},
	}
}
