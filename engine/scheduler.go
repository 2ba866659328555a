package engine

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"venturelink/models"
)

// Every meeting is a one-hour slot; the room expires with it.
const meetingDuration = time.Hour

// validateMeetingDate rejects start dates that are not strictly in the
// future per the server clock.
func (e *Engine) validateMeetingDate(date time.Time) error {
	if !date.After(e.now()) {
		return invalidArgumentf("time is in the past")
	}
	return nil
}

// buildMeeting assembles the row for a provisioned room, binding the owner
// and capital participant references and the owning negotiation.
func buildMeeting(room Room, date time.Time, owner OwnerRef, capital CapitalRef, negotiationID uint) *models.Meeting {
	meeting := &models.Meeting{
		NegotiationID: &negotiationID,
		RoomName:      room.Name,
		RoomURL:       room.URL,
		StartDate:     date,
		EndDate:       date.Add(meetingDuration),
	}

	switch owner.Type {
	case models.OwnerEntrepreneur:
		id := owner.ID
		meeting.EntrepreneurID = &id
	case models.OwnerIncubator:
		id := owner.ID
		meeting.IncubatorID = &id
	}

	switch capital.Type {
	case models.CapitalInvestor:
		meeting.Investors = []models.MeetingInvestor{{InvestorID: capital.ID}}
	case models.CapitalVCGroup:
		meeting.VCGroups = []models.MeetingVCGroup{{VCGroupID: capital.ID}}
	}

	return meeting
}

// CancelMeeting deletes a meeting and notifies whichever side did not
// initiate the cancellation. The parent negotiation's stage is untouched:
// meeting and negotiation cancellation are independent operations.
func (e *Engine) CancelMeeting(ctx context.Context, actorUserID, meetingID uint) ([]Effect, error) {
	db := e.db.WithContext(ctx)

	var meeting models.Meeting
	if err := db.Preload("Investors").Preload("VCGroups").First(&meeting, meetingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundf("meeting %d", meetingID)
		}
		return nil, err
	}

	owner, capital, err := meetingParties(db, &meeting)
	if err != nil {
		return nil, err
	}

	var actingSide Side
	switch actorUserID {
	case owner.UserID:
		actingSide = SideOwner
	case capital.UserID:
		actingSide = SideCapital
	default:
		return nil, notFoundf("user %d is not a participant of meeting %d", actorUserID, meetingID)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("meeting_id = ?", meeting.ID).Delete(&models.MeetingInvestor{}).Error; err != nil {
			return err
		}
		if err := tx.Where("meeting_id = ?", meeting.ID).Delete(&models.MeetingVCGroup{}).Error; err != nil {
			return err
		}
		return tx.Delete(&meeting).Error
	})
	if err != nil {
		return nil, err
	}

	return e.meetingCancelledEffects(&meeting, owner, capital, actingSide)
}

// ListMeetings returns the meetings the actor participates in, soonest first.
func (e *Engine) ListMeetings(ctx context.Context, actorUserID uint) ([]models.Meeting, error) {
	db := e.db.WithContext(ctx)

	query := db.Session(&gorm.Session{NewDB: true})
	scoped := false

	var ent models.Entrepreneur
	if err := db.Where("user_id = ?", actorUserID).First(&ent).Error; err == nil {
		query = query.Or("entrepreneur_id = ?", ent.ID)
		scoped = true
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var inc models.Incubator
	if err := db.Where("user_id = ?", actorUserID).First(&inc).Error; err == nil {
		query = query.Or("incubator_id = ?", inc.ID)
		scoped = true
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var inv models.Investor
	if err := db.Where("user_id = ?", actorUserID).First(&inv).Error; err == nil {
		query = query.Or("id IN (?)", db.Model(&models.MeetingInvestor{}).
			Select("meeting_id").Where("investor_id = ?", inv.ID))
		scoped = true
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var vc models.VCGroup
	if err := db.Where("user_id = ?", actorUserID).First(&vc).Error; err == nil {
		query = query.Or("id IN (?)", db.Model(&models.MeetingVCGroup{}).
			Select("meeting_id").Where("vc_group_id = ?", vc.ID))
		scoped = true
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if !scoped {
		return []models.Meeting{}, nil
	}

	var meetings []models.Meeting
	if err := db.Where(query).Order("start_date ASC").Find(&meetings).Error; err != nil {
		return nil, err
	}
	return meetings, nil
}

// meetingParties resolves both sides of a meeting from its participant
// references.
func meetingParties(db *gorm.DB, meeting *models.Meeting) (OwnerRef, CapitalRef, error) {
	var owner OwnerRef
	switch {
	case meeting.EntrepreneurID != nil:
		var ent models.Entrepreneur
		if err := db.First(&ent, *meeting.EntrepreneurID).Error; err != nil {
			return OwnerRef{}, CapitalRef{}, err
		}
		owner = OwnerRef{Type: models.OwnerEntrepreneur, ID: ent.ID, UserID: ent.UserID}
	case meeting.IncubatorID != nil:
		var inc models.Incubator
		if err := db.First(&inc, *meeting.IncubatorID).Error; err != nil {
			return OwnerRef{}, CapitalRef{}, err
		}
		owner = OwnerRef{Type: models.OwnerIncubator, ID: inc.ID, UserID: inc.UserID}
	default:
		return OwnerRef{}, CapitalRef{}, notFoundf("meeting %d has no owner-side participant", meeting.ID)
	}

	var capital CapitalRef
	switch {
	case len(meeting.Investors) > 0:
		ref, err := capitalPartyByRef(db, models.CapitalInvestor, meeting.Investors[0].InvestorID)
		if err != nil {
			return OwnerRef{}, CapitalRef{}, err
		}
		capital = ref
	case len(meeting.VCGroups) > 0:
		ref, err := capitalPartyByRef(db, models.CapitalVCGroup, meeting.VCGroups[0].VCGroupID)
		if err != nil {
			return OwnerRef{}, CapitalRef{}, err
		}
		capital = ref
	default:
		return OwnerRef{}, CapitalRef{}, notFoundf("meeting %d has no capital-side participant", meeting.ID)
	}

	return owner, capital, nil
}
