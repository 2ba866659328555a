package engine

import (
	"fmt"

	"venturelink/models"
)

// Effect builders. These run after the transactional commit, so a lookup
// failure here leaves the state change intact and is reported to the caller
// as a degraded (effect-less) success by the controllers.

const meetingTimeLayout = "Mon, 02 Jan 2006 15:04 MST"

func (e *Engine) meetingCreatedEffects(n *models.Negotiation, meeting *models.Meeting, owner OwnerRef, capital CapitalRef) ([]Effect, error) {
	project, err := e.projectName(n.ProjectID)
	if err != nil {
		return nil, err
	}
	users, err := e.usersByID(owner.UserID, capital.UserID)
	if err != nil {
		return nil, err
	}

	message := fmt.Sprintf("A meeting for %q has been scheduled for %s.",
		project, meeting.StartDate.Format(meetingTimeLayout))

	effect := newEffect(models.EventMeetingCreated, message, owner.UserID, capital.UserID)
	effect.NegotiationID = &n.ID
	effect.MeetingID = &meeting.ID
	effect.Email = &EmailPayload{
		Subject: fmt.Sprintf("Meeting scheduled: %s", project),
		Body: fmt.Sprintf("A meeting for %q is scheduled for %s. Join with the link below.",
			project, meeting.StartDate.Format(meetingTimeLayout)),
		Recipients: emailRecipients(users, owner.UserID, capital.UserID),
		CTAURL:     meeting.RoomURL,
		CTALabel:   "Join meeting",
	}
	return []Effect{effect}, nil
}

func (e *Engine) stageAdvancedEffects(n *models.Negotiation) ([]Effect, error) {
	owner, err := opportunityOwner(e.db, n.ProjectID)
	if err != nil {
		return nil, err
	}
	capital, err := capitalPartyByRef(e.db, n.CapitalPartyType, n.CapitalPartyID)
	if err != nil {
		return nil, err
	}
	project, err := e.projectName(n.ProjectID)
	if err != nil {
		return nil, err
	}
	users, err := e.usersByID(owner.UserID, capital.UserID)
	if err != nil {
		return nil, err
	}

	var message string
	if n.Stage == models.StageClosed {
		message = fmt.Sprintf("The negotiation for %q has closed. Congratulations on the deal.", project)
	} else {
		message = fmt.Sprintf("Both sides agreed: the negotiation for %q moved to the %s stage.", project, n.Stage)
	}

	effect := newEffect(models.EventNegotiationAdvanced, message, owner.UserID, capital.UserID)
	effect.NegotiationID = &n.ID
	effect.Email = &EmailPayload{
		Subject:    fmt.Sprintf("Negotiation update: %s", project),
		Body:       message,
		Recipients: emailRecipients(users, owner.UserID, capital.UserID),
		CTAURL:     e.negotiationURL(n.ID),
		CTALabel:   "View negotiation",
	}
	return []Effect{effect}, nil
}

func (e *Engine) negotiationCancelledEffects(n *models.Negotiation, actingSide Side) ([]Effect, error) {
	owner, err := opportunityOwner(e.db, n.ProjectID)
	if err != nil {
		return nil, err
	}
	capital, err := capitalPartyByRef(e.db, n.CapitalPartyType, n.CapitalPartyID)
	if err != nil {
		return nil, err
	}
	project, err := e.projectName(n.ProjectID)
	if err != nil {
		return nil, err
	}

	// Only the side that did not cancel needs to hear about it.
	counterpart := owner.UserID
	if actingSide == SideOwner {
		counterpart = capital.UserID
	}
	users, err := e.usersByID(counterpart)
	if err != nil {
		return nil, err
	}

	message := fmt.Sprintf("The negotiation for %q has been cancelled by the other party.", project)

	effect := newEffect(models.EventNegotiationCancelled, message, counterpart)
	effect.NegotiationID = &n.ID
	effect.Email = &EmailPayload{
		Subject:    fmt.Sprintf("Negotiation cancelled: %s", project),
		Body:       message,
		Recipients: emailRecipients(users, counterpart),
		CTAURL:     e.negotiationURL(n.ID),
		CTALabel:   "View details",
	}
	return []Effect{effect}, nil
}

func (e *Engine) meetingCancelledEffects(meeting *models.Meeting, owner OwnerRef, capital CapitalRef, actingSide Side) ([]Effect, error) {
	counterpart := owner.UserID
	if actingSide == SideOwner {
		counterpart = capital.UserID
	}
	users, err := e.usersByID(counterpart)
	if err != nil {
		return nil, err
	}

	message := fmt.Sprintf("The meeting scheduled for %s has been cancelled by the other party.",
		meeting.StartDate.Format(meetingTimeLayout))

	effect := newEffect(models.EventMeetingCancelled, message, counterpart)
	effect.NegotiationID = meeting.NegotiationID
	effect.MeetingID = &meeting.ID
	effect.Email = &EmailPayload{
		Subject:    "Meeting cancelled",
		Body:       message,
		Recipients: emailRecipients(users, counterpart),
	}
	return []Effect{effect}, nil
}

func (e *Engine) projectName(projectID uint) (string, error) {
	var project models.Project
	if err := e.db.First(&project, projectID).Error; err != nil {
		return "", err
	}
	return project.Name, nil
}

func (e *Engine) usersByID(ids ...uint) (map[uint]models.User, error) {
	var users []models.User
	if err := e.db.Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	return byID, nil
}

func emailRecipients(users map[uint]models.User, ids ...uint) []EmailRecipient {
	var recipients []EmailRecipient
	for _, id := range ids {
		u, ok := users[id]
		if !ok {
			continue
		}
		recipients = append(recipients, EmailRecipient{Name: u.Name, Address: u.Email})
	}
	return recipients
}
