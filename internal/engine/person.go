package engine

import (
	"context"
	"fmt"

	"github.com/rostersync/rostersync/internal/directory"
	"github.com/rostersync/rostersync/internal/extract"
)

// preferredIDField is the optional person column name whose value seeds the
// directory id at first creation. It is never stored as a property.
const preferredIDField = "id"

type personProcessor struct{ *Engine }

func (p personProcessor) kind() Kind { return KindPerson }

func (p personProcessor) line(ctx context.Context, rs *RunState, fields []string) (action, error) {
	if err := requireFields(fields, 6); err != nil {
		return actionIgnore, err
	}
	eid := fields[0]
	incoming := directory.Person{
		EID:      eid,
		LastName: fields[1], FirstName: fields[2],
		Email: fields[3], Password: fields[4], Type: fields[5],
	}

	idHint := ""
	props := make(map[string]string)
	for i, name := range p.settings.OptionalPersonFields {
		value := extract.Field(fields, 6+i)
		if name == preferredIDField {
			idHint = value
			continue
		}
		// An absent value deletes the stored property rather than keeping
		// a stale one around.
		if value != "" {
			props[name] = value
		}
	}
	incoming.Properties = props

	existing, err := p.ident.GetByEID(ctx, eid)
	if err != nil {
		return actionIgnore, err
	}

	act := actionIgnore
	switch {
	case existing == nil:
		incoming.ID = idHint
		if incoming.ID == "" {
			incoming.ID = p.ids.New()
		}
		if err := p.ident.Create(ctx, &incoming); err != nil {
			return actionIgnore, fmt.Errorf("create person %s: %w", eid, err)
		}
		act = actionAdd
	default:
		changed, err := p.personChanged(ctx, existing, &incoming)
		if err != nil {
			return actionIgnore, err
		}
		if changed {
			incoming.ID = existing.ID
			if incoming.Password == "" {
				incoming.Password = existing.Password
			}
			if err := p.ident.Update(ctx, &incoming); err != nil {
				return actionIgnore, fmt.Errorf("update person %s: %w", eid, err)
			}
			act = actionUpdate
		}
		incoming.ID = existing.ID
	}

	if err := p.store.StampPerson(ctx, eid, incoming.ID, rs.Stamp); err != nil {
		return actionIgnore, err
	}
	return act, nil
}

// personChanged compares the stored record against the incoming one field
// by field. An absent property means deletion; a blank password keeps the
// stored credential. The password is compared through the directory's
// credential check, never read back.
func (p personProcessor) personChanged(ctx context.Context, existing, incoming *directory.Person) (bool, error) {
	if existing.LastName != incoming.LastName ||
		existing.FirstName != incoming.FirstName ||
		existing.Email != incoming.Email ||
		existing.Type != incoming.Type {
		return true, nil
	}
	if incoming.Password != "" {
		ok, err := p.ident.CheckPassword(ctx, existing.ID, incoming.Password)
		if err != nil {
			return false, err
		}
		if !ok {
			return true, nil
		}
	}
	if len(existing.Properties) != len(incoming.Properties) {
		return true, nil
	}
	for k, v := range incoming.Properties {
		if existing.Properties[k] != v {
			return true, nil
		}
	}
	return false, nil
}

// sweep applies the configured removal mode to every person the current
// file did not reaffirm, then drops the tracking row so a handled person is
// not re-swept every subsequent run.
func (p personProcessor) sweep(ctx context.Context, rs *RunState) error {
	if rs.Policies.UserRemovalMode == RemovalIgnore {
		p.log.Info("user removal mode is ignore, skipping person sweep", "run", rs.ID)
		return nil
	}
	page := p.settings.PageSize
	for {
		if p.stopRequested() {
			return newStopError(rs.ID, KindPerson)
		}
		// Every returned record's tracking row is deleted below, so the
		// query restarts at offset zero over a strictly shrinking set.
		records, err := p.store.StalePersonsPage(ctx, rs.Stamp, 0, page)
		if err != nil {
			return err
		}
		for _, rec := range records {
			removed, err := p.removePerson(ctx, rs, rec.EID)
			if err != nil {
				return err
			}
			if removed {
				rs.current.Deletes++
			}
			if err := p.store.DeletePerson(ctx, rec.EID); err != nil {
				return err
			}
		}
		if len(records) < page {
			return nil
		}
	}
}

func (p personProcessor) removePerson(ctx context.Context, rs *RunState, eid string) (bool, error) {
	person, err := p.ident.GetByEID(ctx, eid)
	if err != nil {
		return false, err
	}
	if person == nil {
		p.log.Warn("stale person already absent from directory", "run", rs.ID, "eid", eid)
		return false, nil
	}
	switch rs.Policies.UserRemovalMode {
	case RemovalDelete:
		if err := p.ident.Remove(ctx, person.ID); err != nil {
			return false, fmt.Errorf("remove person %s: %w", eid, err)
		}
	default:
		if person.Type == p.settings.SuspendedType {
			return false, nil
		}
		if err := p.ident.SetType(ctx, person.ID, p.settings.SuspendedType); err != nil {
			return false, fmt.Errorf("suspend person %s: %w", eid, err)
		}
	}
	return true, nil
}
