// Package channel resolves named groups of hardware report channels into
// ordered, deduplicated channel descriptors.
//
// A Group names an OS channel group and optional subgroup, for example
// "Energy Model" or "CPU Stats/CPU Core Performance States". The Catalog
// queries the reporting facility for each group, merges the OS channel sets
// the same way the facility merges them, and removes duplicate descriptors by
// (group, subgroup, name). The result is a Set: the immutable input for
// opening a subscription.
//
// Each Descriptor carries its Kind (Simple or StateResidency), decided once at
// resolution time so no per-sample type inspection is needed downstream.
//
// Usage:
//
//	cat := channel.NewCatalog(ioreport.NewReporter())
//	set, err := cat.Resolve(channel.DefaultGroups()...)
//	if err != nil {
//	    // errors.IsCode(err, errors.ErrCodeChannelResolution): show "no data"
//	}
//	defer set.Release()
package channel
