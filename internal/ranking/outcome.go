// Bazaar - Offline-Resilient Marketplace Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bazaar

package ranking

import (
	"errors"
	"fmt"
	"time"
)

// Status is the discriminant of a run Outcome.
type Status int

const (
	// StatusSuccess means every partition was written.
	StatusSuccess Status = iota

	// StatusPartialFailure means the run finished but some partitions
	// kept their last-known-good rows.
	StatusPartialFailure

	// StatusAborted means the run made no progress past its inputs.
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusPartialFailure:
		return "partial_failure"
	case StatusAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Partition error kinds.
const (
	KindCategories = "categories"
	KindBusiness   = "business"
	KindProduct    = "product"
	KindPrune      = "prune"
)

// PartitionError records one partition whose refresh was abandoned.
type PartitionError struct {
	Kind string
	Key  string
	Err  error
}

func (e PartitionError) Error() string {
	return fmt.Sprintf("%s partition %q: %v", e.Kind, e.Key, e.Err)
}

func (e PartitionError) Unwrap() error {
	return e.Err
}

// Outcome describes one ranking run. Run never returns an error; callers
// inspect the Outcome instead.
type Outcome struct {
	Status          Status
	Reason          string
	PartitionErrors []PartitionError

	Categories                int
	BusinessPartitions        int
	ClearedBusinessPartitions int
	EligibleBusinesses        int
	ProductPartitions         int
	ClearedProductPartitions  int

	Duration time.Duration
}

// CountErrors returns how many partition errors are of the given kind.
func (o Outcome) CountErrors(kind string) int {
	n := 0
	for _, e := range o.PartitionErrors {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// Err joins the partition errors, or describes the abort. It is nil
// for a successful run.
func (o Outcome) Err() error {
	switch o.Status {
	case StatusSuccess:
		return nil
	case StatusAborted:
		return errors.New("ranking aborted: " + o.Reason)
	}
	errs := make([]error, len(o.PartitionErrors))
	for i, e := range o.PartitionErrors {
		errs[i] = e
	}
	return errors.Join(errs...)
}
