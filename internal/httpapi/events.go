// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package httpapi

import (
	"github.com/eyevinn/strom/internal/events"
	"github.com/eyevinn/strom/internal/flow"
)

// flowCreatedEvent/flowUpdatedEvent/flowDeletedEvent build the StromEvents
// this package's CRUD handlers publish alongside their REST response, so
// /ws subscribers see the same lifecycle the REST client triggered.

func flowCreatedEvent(f *flow.Flow) events.Event {
	return events.New(events.KindFlowCreated, map[string]any{"flow_id": f.ID.String(), "name": f.Name})
}

func flowUpdatedEvent(f *flow.Flow) events.Event {
	return events.New(events.KindFlowUpdated, map[string]any{"flow_id": f.ID.String(), "name": f.Name})
}

func flowDeletedEvent(flowID string) events.Event {
	return events.New(events.KindFlowDeleted, map[string]any{"flow_id": flowID})
}
