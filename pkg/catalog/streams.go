package catalog

// Default returns the SevenRooms stream tree. Venues are a full snapshot
// keyed by id; reservations and clients are fetched per venue per day and
// bookmarked on the injected date field.
func Default() *Catalog {
	return &Catalog{
		Streams: map[string]*StreamDefinition{
			"venues": {
				Name:              "venues",
				Path:              "venues",
				DataKey:           "results",
				KeyProperties:     []string{"id"},
				ReplicationMethod: FullTable,
				UseDates:          false,
				ExtraParams: map[string]string{
					"venue_group_id": "{venue_group_id}",
				},
				Children: map[string]*StreamDefinition{
					"reservations": {
						Name:              "reservations",
						Path:              "venue/{venue_id}/reservations",
						DataKey:           "results",
						KeyProperties:     []string{"id"},
						ReplicationMethod: Incremental,
						ReplicationKeys:   []string{"date"},
						UseDates:          true,
					},
					"clients": {
						Name:              "clients",
						Path:              "venue/{venue_id}/clients",
						DataKey:           "results",
						KeyProperties:     []string{"id"},
						ReplicationMethod: Incremental,
						ReplicationKeys:   []string{"date"},
						UseDates:          true,
					},
				},
			},
		},
	}
}
