package models

import "markers/pkg/domain"

const (
	// accountOverhead is the per-record bookkeeping charged on top of the data size.
	accountOverhead     = 128
	lamportsPerByteYear = 3480
	exemptionYears      = 2
)

// RentExemptMinimum is the deposit that keeps a record of size bytes alive indefinitely.
func RentExemptMinimum(size int) uint64 {
	return uint64(size+accountOverhead) * lamportsPerByteYear * exemptionYears
}

// Reclaim is the deposit returned when a record is destroyed.
type Reclaim struct {
	Beneficiary domain.Key `json:"beneficiary"`
	Amount      uint64     `json:"amount"`
}
