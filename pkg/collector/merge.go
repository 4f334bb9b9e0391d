package collector

import "github.com/rs/zerolog"

// absorb folds one ContractResult into the aggregate. Called only from
// the single consumer loop in Collect, so no locking is needed.
func (r *Result) absorb(res *ContractResult, logger zerolog.Logger) {
	if !res.Success {
		r.Failed = append(r.Failed, Failure{
			ContractID:  res.Contract.ContractID,
			CompanyName: res.Contract.CompanyName,
			Reason:      res.Reason,
		})
		return
	}

	r.SuccessCount++

	if len(res.Products) > 0 {
		r.Products[res.Contract.ContractID] = ProductListing{
			AccountKey:  res.Contract.AccountKey,
			CompanyName: res.Contract.CompanyName,
			Data:        res.Products,
		}
	}

	mergeRecords(r.ProductUsage, res.ProductUsage, logger)
	mergeRecords(r.ReportingGroupUsage, res.ReportingGroupUsage, logger)
}

// mergeRecords performs the disjoint union of one contract's records into
// the aggregate map. Keys are partitioned by owning contract, so a
// collision means the partitioning is broken; it is logged and counted,
// and the later write wins so a rerun of a contract self-heals.
func mergeRecords(dst, src map[string]UsageRecord, logger zerolog.Logger) {
	for key, record := range src {
		if existing, ok := dst[key]; ok {
			keyCollisionsTotal.Inc()
			logger.Error().
				Str("key", key).
				Str("existing_contract", existing.ContractID).
				Str("incoming_contract", record.ContractID).
				Msg("Composite key collision during merge")
		}
		dst[key] = record
	}
}
