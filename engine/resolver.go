package engine

import (
	"errors"

	"gorm.io/gorm"

	"venturelink/models"
)

// Side identifies which half of a negotiation an actor sits on.
type Side string

const (
	SideOwner   Side = "owner"
	SideCapital Side = "capital"
)

// OwnerRef points at the opportunity-owner side of a deal: the entrepreneur
// or incubator record plus the user who acts (and is notified) for it.
type OwnerRef struct {
	Type   models.OwnerType
	ID     uint
	UserID uint
}

// CapitalRef points at the capital side of a deal: the investor or VC group
// record plus its owning user.
type CapitalRef struct {
	Type   models.CapitalPartyType
	ID     uint
	UserID uint
}

// Resolver maps authenticated actors and projects onto the concrete roles
// they hold. Pure lookup, no side effects.
type Resolver struct {
	db *gorm.DB
}

func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db}
}

// OpportunityOwner resolves the owning side of a project.
func (r *Resolver) OpportunityOwner(projectID uint) (OwnerRef, error) {
	return opportunityOwner(r.db, projectID)
}

// CapitalParty resolves the investor or VC group role held by a user. A user
// holding neither role is not a capital party.
func (r *Resolver) CapitalParty(actorUserID uint) (CapitalRef, error) {
	return capitalParty(r.db, actorUserID)
}

func opportunityOwner(db *gorm.DB, projectID uint) (OwnerRef, error) {
	var project models.Project
	if err := db.First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return OwnerRef{}, notFoundf("project %d", projectID)
		}
		return OwnerRef{}, err
	}

	switch project.OwnerType {
	case models.OwnerEntrepreneur:
		var ent models.Entrepreneur
		if err := db.First(&ent, project.OwnerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return OwnerRef{}, notFoundf("entrepreneur %d for project %d", project.OwnerID, projectID)
			}
			return OwnerRef{}, err
		}
		return OwnerRef{Type: models.OwnerEntrepreneur, ID: ent.ID, UserID: ent.UserID}, nil
	case models.OwnerIncubator:
		var inc models.Incubator
		if err := db.First(&inc, project.OwnerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return OwnerRef{}, notFoundf("incubator %d for project %d", project.OwnerID, projectID)
			}
			return OwnerRef{}, err
		}
		return OwnerRef{Type: models.OwnerIncubator, ID: inc.ID, UserID: inc.UserID}, nil
	default:
		return OwnerRef{}, notFoundf("project %d has no owning party", projectID)
	}
}

func capitalParty(db *gorm.DB, actorUserID uint) (CapitalRef, error) {
	var inv models.Investor
	err := db.Where("user_id = ?", actorUserID).First(&inv).Error
	if err == nil {
		return CapitalRef{Type: models.CapitalInvestor, ID: inv.ID, UserID: inv.UserID}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return CapitalRef{}, err
	}

	var vc models.VCGroup
	err = db.Where("user_id = ?", actorUserID).First(&vc).Error
	if err == nil {
		return CapitalRef{Type: models.CapitalVCGroup, ID: vc.ID, UserID: vc.UserID}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return CapitalRef{}, err
	}

	return CapitalRef{}, notFoundf("user %d holds no capital-party role", actorUserID)
}

// negotiationSide determines which side of a negotiation the user acts on,
// derived from resolved roles rather than client-supplied data.
func negotiationSide(db *gorm.DB, n *models.Negotiation, actorUserID uint) (Side, error) {
	owner, err := opportunityOwner(db, n.ProjectID)
	if err == nil && owner.UserID == actorUserID {
		return SideOwner, nil
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return "", err
	}

	capital, err := capitalPartyByRef(db, n.CapitalPartyType, n.CapitalPartyID)
	if err == nil && capital.UserID == actorUserID {
		return SideCapital, nil
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return "", err
	}

	return "", notFoundf("user %d is not a party to negotiation %d", actorUserID, n.ID)
}

// capitalPartyByRef loads the capital-party record a negotiation points at.
func capitalPartyByRef(db *gorm.DB, partyType models.CapitalPartyType, partyID uint) (CapitalRef, error) {
	switch partyType {
	case models.CapitalInvestor:
		var inv models.Investor
		if err := db.First(&inv, partyID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return CapitalRef{}, notFoundf("investor %d", partyID)
			}
			return CapitalRef{}, err
		}
		return CapitalRef{Type: models.CapitalInvestor, ID: inv.ID, UserID: inv.UserID}, nil
	case models.CapitalVCGroup:
		var vc models.VCGroup
		if err := db.First(&vc, partyID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return CapitalRef{}, notFoundf("vc group %d", partyID)
			}
			return CapitalRef{}, err
		}
		return CapitalRef{Type: models.CapitalVCGroup, ID: vc.ID, UserID: vc.UserID}, nil
	default:
		return CapitalRef{}, notFoundf("unknown capital party type %q", partyType)
	}
}
