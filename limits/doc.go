// Package limits provides the centralized capacity constants and validation
// functions for the LE Audio stream engine. Every fixed-size pool and every
// bounded wire structure in this module takes its ceiling from here so the
// same numbers are enforced by the codec model, the endpoint pools and the
// BASE encoder.
//
// # Capacity Hierarchy
//
// The constants fall into three groups:
//
//   - Protocol ceilings: values fixed by the Bluetooth specifications, such as
//     MaxLTVValueLen (the LTV length byte covers the type byte, so a value can
//     be at most 254 bytes), MaxBISPerBIG (31) and MaxSDU (4095).
//
//   - Pool ceilings: the largest pools the engine will ever allocate
//     (MaxASEsPerDirection, MaxUnicastGroups, MaxBroadcastSources ...). The
//     config package validates user supplied pool sizes against them.
//
//   - Defaults: the pool sizes used when no option overrides them.
//
// # Validation Functions
//
// Each validation function wraps ErrCapacityExceeded or ErrValueTooLarge with
// the offending size:
//
//	if err := limits.ValidateEntryCount(len(entries), limits.MaxCodecDataEntries); err != nil {
//	    return err
//	}
package limits
