package models

// DomainModels lists the tables present in both the remote store and the local cache.
func DomainModels() []any {
	return []any{
		&Category{},
		&Product{},
		&InventoryItem{},
		&RecipeLine{},
		&Order{},
		&OrderItem{},
		&OrderSequence{},
		&SyncAppliedEntry{},
	}
}

// LocalModels lists the local cache schema: the domain tables plus the sync queue.
func LocalModels() []any {
	return append(DomainModels(), &SyncQueueEntry{})
}
