package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"venturelink/models"
)

// Room is the external video room a meeting takes place in.
type Room struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// RoomProvisioner creates video rooms with the third-party provider. A
// provisioning failure is fatal to the operation that needed the room.
type RoomProvisioner interface {
	CreateRoom(ctx context.Context, expiry time.Time) (Room, error)
}

// Engine owns the negotiation lifecycle: creation, dual-consent advancement,
// cancellation and the meeting scheduling each of them triggers. It is
// stateless per request; all state lives in the backing store. Operations
// return the outbound effects of a committed change instead of dispatching
// them, so delivery never blocks or rolls back the state mutation.
type Engine struct {
	db     *gorm.DB
	rooms  RoomProvisioner
	appURL string

	// now is swapped out in tests.
	now func() time.Time
}

func New(db *gorm.DB, rooms RoomProvisioner, appURL string) *Engine {
	return &Engine{
		db:     db,
		rooms:  rooms,
		appURL: appURL,
		now:    time.Now,
	}
}

// OpenPitch creates a negotiation at the pitch stage together with its
// founding meeting. Only a capital party may open one, and only one
// non-cancelled negotiation may exist per (project, capital party) pair.
func (e *Engine) OpenPitch(ctx context.Context, actorUserID, projectID uint, date time.Time) (*models.Negotiation, *models.Meeting, []Effect, error) {
	capital, err := capitalParty(e.db, actorUserID)
	if err != nil {
		return nil, nil, nil, err
	}
	owner, err := opportunityOwner(e.db, projectID)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := e.validateMeetingDate(date); err != nil {
		return nil, nil, nil, err
	}

	// Cheap duplicate check before spending a room-provisioning call. The
	// authoritative check runs again inside the transaction.
	if err := e.checkNoOpenNegotiation(e.db, projectID, capital); err != nil {
		return nil, nil, nil, err
	}

	room, err := e.provisionRoom(ctx, date)
	if err != nil {
		return nil, nil, nil, err
	}

	negotiation := &models.Negotiation{
		ProjectID:        projectID,
		CapitalPartyType: capital.Type,
		CapitalPartyID:   capital.ID,
		Stage:            models.StagePitch,
		OwnerStatus:      models.PartyAwaitingAction,
		CapitalStatus:    models.PartyAwaitingAction,
	}
	var meeting *models.Meeting

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := e.checkNoOpenNegotiation(tx, projectID, capital); err != nil {
			return err
		}
		if err := tx.Create(negotiation).Error; err != nil {
			return err
		}
		meeting = buildMeeting(room, date, owner, capital, negotiation.ID)
		return tx.Create(meeting).Error
	})
	if err != nil {
		return nil, nil, nil, err
	}

	effects, err := e.meetingCreatedEffects(negotiation, meeting, owner, capital)
	if err != nil {
		return negotiation, meeting, nil, err
	}
	return negotiation, meeting, effects, nil
}

// ScheduleFollowUp schedules another meeting within an existing negotiation
// and re-opens the round: both sides must act again before advancing. A
// follow-up implies the pitch already happened, so a negotiation that is
// missing, still at pitch, or terminal is rejected.
func (e *Engine) ScheduleFollowUp(ctx context.Context, actorUserID, negotiationID uint, date time.Time) (*models.Meeting, []Effect, error) {
	var negotiation models.Negotiation
	if err := e.db.First(&negotiation, negotiationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, invalidStatef("negotiation %d does not exist", negotiationID)
		}
		return nil, nil, err
	}
	if negotiation.Stage == models.StagePitch {
		return nil, nil, invalidStatef("negotiation %d has not finished its pitch", negotiationID)
	}
	if negotiation.Stage.Terminal() {
		return nil, nil, invalidStatef("negotiation %d is %s", negotiationID, negotiation.Stage)
	}
	if _, err := negotiationSide(e.db, &negotiation, actorUserID); err != nil {
		return nil, nil, err
	}
	if err := e.validateMeetingDate(date); err != nil {
		return nil, nil, err
	}

	owner, err := opportunityOwner(e.db, negotiation.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	capital, err := capitalPartyByRef(e.db, negotiation.CapitalPartyType, negotiation.CapitalPartyID)
	if err != nil {
		return nil, nil, err
	}

	room, err := e.provisionRoom(ctx, date)
	if err != nil {
		return nil, nil, err
	}

	var meeting *models.Meeting
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&negotiation, negotiationID).Error; err != nil {
			return err
		}
		if negotiation.Stage == models.StagePitch || negotiation.Stage.Terminal() {
			return invalidStatef("negotiation %d is %s", negotiationID, negotiation.Stage)
		}
		negotiation.OwnerStatus = models.PartyAwaitingAction
		negotiation.CapitalStatus = models.PartyAwaitingAction
		if err := tx.Save(&negotiation).Error; err != nil {
			return err
		}
		meeting = buildMeeting(room, date, owner, capital, negotiation.ID)
		return tx.Create(meeting).Error
	})
	if err != nil {
		return nil, nil, err
	}

	effects, err := e.meetingCreatedEffects(&negotiation, meeting, owner, capital)
	if err != nil {
		return meeting, nil, err
	}
	return meeting, effects, nil
}

// Advance records the acting side's consent to move to the next stage. The
// last side to agree triggers the stage transition, which also consumes both
// consents. Repeated calls from the same side are harmless: consent is a flag
// assignment, not an increment. The read-decide-write sequence runs under a
// row lock so two concurrent calls from opposite sides cannot both conclude
// "not yet both agreed".
func (e *Engine) Advance(ctx context.Context, actorUserID, negotiationID uint) (*models.Negotiation, []Effect, error) {
	var negotiation models.Negotiation
	advanced := false

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&negotiation, negotiationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundf("negotiation %d", negotiationID)
			}
			return err
		}
		if negotiation.Stage.Terminal() {
			return invalidStatef("negotiation %d is %s", negotiationID, negotiation.Stage)
		}

		side, err := negotiationSide(tx, &negotiation, actorUserID)
		if err != nil {
			return err
		}
		switch side {
		case SideOwner:
			negotiation.OwnerStatus = models.PartyAgreed
		case SideCapital:
			negotiation.CapitalStatus = models.PartyAgreed
		}

		if negotiation.BothAgreed() {
			next, ok := negotiation.Stage.Next()
			if !ok {
				return invalidStatef("negotiation %d cannot advance past %s", negotiationID, negotiation.Stage)
			}
			negotiation.Stage = next
			negotiation.OwnerStatus = models.PartyIdle
			negotiation.CapitalStatus = models.PartyIdle
			advanced = true
		}
		return tx.Save(&negotiation).Error
	})
	if err != nil {
		return nil, nil, err
	}

	if !advanced {
		return &negotiation, nil, nil
	}
	effects, err := e.stageAdvancedEffects(&negotiation)
	if err != nil {
		return &negotiation, nil, err
	}
	return &negotiation, effects, nil
}

// Cancel moves the negotiation into the cancelled terminal stage and clears
// both sides' pending state. Cancelling an already terminal negotiation is a
// no-op. The side that did not initiate the cancel is notified.
func (e *Engine) Cancel(ctx context.Context, actorUserID, negotiationID uint) (*models.Negotiation, []Effect, error) {
	var negotiation models.Negotiation
	var actingSide Side
	noop := false

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&negotiation, negotiationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundf("negotiation %d", negotiationID)
			}
			return err
		}
		side, err := negotiationSide(tx, &negotiation, actorUserID)
		if err != nil {
			return err
		}
		actingSide = side

		if negotiation.Stage.Terminal() {
			noop = true
			return nil
		}
		negotiation.Stage = models.StageCancelled
		negotiation.OwnerStatus = models.PartyIdle
		negotiation.CapitalStatus = models.PartyIdle
		return tx.Save(&negotiation).Error
	})
	if err != nil {
		return nil, nil, err
	}
	if noop {
		return &negotiation, nil, nil
	}

	effects, err := e.negotiationCancelledEffects(&negotiation, actingSide)
	if err != nil {
		return &negotiation, nil, err
	}
	return &negotiation, effects, nil
}

// GetForPartyAndProject returns the negotiation between the acting party and
// the given project. For a capital actor that is the open negotiation of the
// (project, party) pair; for the project's owner it is the most recent
// non-cancelled negotiation on the project.
func (e *Engine) GetForPartyAndProject(ctx context.Context, actorUserID, projectID uint) (*models.Negotiation, error) {
	db := e.db.WithContext(ctx)

	capital, err := capitalParty(db, actorUserID)
	if err == nil {
		var negotiation models.Negotiation
		err := db.Where("project_id = ? AND capital_party_type = ? AND capital_party_id = ? AND stage <> ?",
			projectID, capital.Type, capital.ID, models.StageCancelled).
			First(&negotiation).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundf("no open negotiation between party and project %d", projectID)
		}
		if err != nil {
			return nil, err
		}
		return &negotiation, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	owner, err := opportunityOwner(db, projectID)
	if err != nil {
		return nil, err
	}
	if owner.UserID != actorUserID {
		return nil, notFoundf("user %d holds no role on project %d", actorUserID, projectID)
	}
	var negotiation models.Negotiation
	err = db.Where("project_id = ? AND stage <> ?", projectID, models.StageCancelled).
		Order("id DESC").
		First(&negotiation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundf("no open negotiation for project %d", projectID)
	}
	if err != nil {
		return nil, err
	}
	return &negotiation, nil
}

// GetNegotiation returns one negotiation, restricted to its participants.
func (e *Engine) GetNegotiation(ctx context.Context, actorUserID, negotiationID uint) (*models.Negotiation, error) {
	db := e.db.WithContext(ctx)
	var negotiation models.Negotiation
	if err := db.First(&negotiation, negotiationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundf("negotiation %d", negotiationID)
		}
		return nil, err
	}
	if _, err := negotiationSide(db, &negotiation, actorUserID); err != nil {
		return nil, err
	}
	return &negotiation, nil
}

// ListNegotiations returns every negotiation the actor participates in, on
// either side, newest first.
func (e *Engine) ListNegotiations(ctx context.Context, actorUserID uint) ([]models.Negotiation, error) {
	db := e.db.WithContext(ctx)

	query := db.Session(&gorm.Session{NewDB: true})
	scoped := false

	if capital, err := capitalParty(db, actorUserID); err == nil {
		query = query.Or("capital_party_type = ? AND capital_party_id = ?", capital.Type, capital.ID)
		scoped = true
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	projectIDs, err := ownedProjectIDs(db, actorUserID)
	if err != nil {
		return nil, err
	}
	if len(projectIDs) > 0 {
		query = query.Or("project_id IN ?", projectIDs)
		scoped = true
	}

	if !scoped {
		return []models.Negotiation{}, nil
	}

	var negotiations []models.Negotiation
	if err := db.Where(query).Order("id DESC").Find(&negotiations).Error; err != nil {
		return nil, err
	}
	return negotiations, nil
}

// ownedProjectIDs lists the projects the user owns through an entrepreneur
// or incubator role.
func ownedProjectIDs(db *gorm.DB, actorUserID uint) ([]uint, error) {
	var ids []uint

	var ent models.Entrepreneur
	err := db.Where("user_id = ?", actorUserID).First(&ent).Error
	if err == nil {
		var projectIDs []uint
		if err := db.Model(&models.Project{}).
			Where("owner_type = ? AND owner_id = ?", models.OwnerEntrepreneur, ent.ID).
			Pluck("id", &projectIDs).Error; err != nil {
			return nil, err
		}
		ids = append(ids, projectIDs...)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var inc models.Incubator
	err = db.Where("user_id = ?", actorUserID).First(&inc).Error
	if err == nil {
		var projectIDs []uint
		if err := db.Model(&models.Project{}).
			Where("owner_type = ? AND owner_id = ?", models.OwnerIncubator, inc.ID).
			Pluck("id", &projectIDs).Error; err != nil {
			return nil, err
		}
		ids = append(ids, projectIDs...)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	return ids, nil
}

// checkNoOpenNegotiation enforces the at-most-one non-cancelled negotiation
// per (project, capital party) invariant.
func (e *Engine) checkNoOpenNegotiation(db *gorm.DB, projectID uint, capital CapitalRef) error {
	var count int64
	err := db.Model(&models.Negotiation{}).
		Where("project_id = ? AND capital_party_type = ? AND capital_party_id = ? AND stage <> ?",
			projectID, capital.Type, capital.ID, models.StageCancelled).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return conflictf("an open negotiation already exists for project %d", projectID)
	}
	return nil
}

func (e *Engine) provisionRoom(ctx context.Context, start time.Time) (Room, error) {
	room, err := e.rooms.CreateRoom(ctx, start.Add(meetingDuration))
	if err != nil {
		return Room{}, dependencyFailuref("provision video room: %v", err)
	}
	return room, nil
}

func (e *Engine) negotiationURL(negotiationID uint) string {
	return fmt.Sprintf("%s/negotiations/%d", e.appURL, negotiationID)
}

// lockForUpdate takes a row lock where the dialect supports it. The SQLite
// test store rejects FOR UPDATE; its single-writer lock serializes writes.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}
