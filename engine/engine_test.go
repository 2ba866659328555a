package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"venturelink/models"
)

type fakeRooms struct {
	calls int
	fail  bool
}

func (f *fakeRooms) CreateRoom(ctx context.Context, expiry time.Time) (Room, error) {
	f.calls++
	if f.fail {
		return Room{}, errors.New("room provider down")
	}
	return Room{
		Name: fmt.Sprintf("room-%d", f.calls),
		URL:  fmt.Sprintf("https://rooms.example.com/room-%d", f.calls),
	}, nil
}

type testEnv struct {
	t     *testing.T
	db    *gorm.DB
	eng   *Engine
	rooms *fakeRooms
	now   time.Time

	entUser models.User
	incUser models.User
	invUser models.User
	vcUser  models.User

	ent models.Entrepreneur
	inc models.Incubator
	inv models.Investor
	vc  models.VCGroup

	entProject models.Project
	incProject models.Project
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	err = db.AutoMigrate(
		&models.User{},
		&models.Entrepreneur{},
		&models.Incubator{},
		&models.Investor{},
		&models.VCGroup{},
		&models.Project{},
		&models.Negotiation{},
		&models.Meeting{},
		&models.MeetingInvestor{},
		&models.MeetingVCGroup{},
		&models.Notification{},
	)
	if err != nil {
		t.Fatalf("migrate test database: %v", err)
	}

	env := &testEnv{
		t:     t,
		db:    db,
		rooms: &fakeRooms{},
		now:   time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	env.eng = New(db, env.rooms, "https://app.example.com")
	env.eng.now = func() time.Time { return env.now }

	env.entUser = env.createUser("elena@founders.example.com", "Elena")
	env.incUser = env.createUser("hub@incubator.example.com", "Hub")
	env.invUser = env.createUser("ivan@capital.example.com", "Ivan")
	env.vcUser = env.createUser("fund@vc.example.com", "Fund")

	env.ent = models.Entrepreneur{UserID: env.entUser.ID, CompanyName: "Elena Labs"}
	mustCreate(t, db, &env.ent)
	env.inc = models.Incubator{UserID: env.incUser.ID, Name: "Seedbed"}
	mustCreate(t, db, &env.inc)
	env.inv = models.Investor{UserID: env.invUser.ID, FirmName: "Ivan Capital"}
	mustCreate(t, db, &env.inv)
	env.vc = models.VCGroup{UserID: env.vcUser.ID, Name: "Northwind Fund"}
	mustCreate(t, db, &env.vc)

	env.entProject = models.Project{
		Name:      "Solar Farm",
		OwnerType: models.OwnerEntrepreneur,
		OwnerID:   env.ent.ID,
	}
	mustCreate(t, db, &env.entProject)
	env.incProject = models.Project{
		Name:      "Biotech Spinout",
		OwnerType: models.OwnerIncubator,
		OwnerID:   env.inc.ID,
	}
	mustCreate(t, db, &env.incProject)

	return env
}

func mustCreate(t *testing.T, db *gorm.DB, value interface{}) {
	t.Helper()
	if err := db.Create(value).Error; err != nil {
		t.Fatalf("seed %T: %v", value, err)
	}
}

func (env *testEnv) createUser(email, name string) models.User {
	env.t.Helper()
	user := models.User{Email: email, Name: name, IsActive: true}
	mustCreate(env.t, env.db, &user)
	return user
}

func (env *testEnv) futureDate() time.Time {
	return env.now.Add(48 * time.Hour)
}

func (env *testEnv) openPitch(actor models.User, projectID uint) (*models.Negotiation, *models.Meeting, []Effect) {
	env.t.Helper()
	negotiation, meeting, effects, err := env.eng.OpenPitch(context.Background(), actor.ID, projectID, env.futureDate())
	if err != nil {
		env.t.Fatalf("open pitch: %v", err)
	}
	return negotiation, meeting, effects
}

func (env *testEnv) countRows(model interface{}) int64 {
	env.t.Helper()
	var count int64
	if err := env.db.Model(model).Count(&count).Error; err != nil {
		env.t.Fatalf("count %T: %v", model, err)
	}
	return count
}

func (env *testEnv) reload(negotiationID uint) models.Negotiation {
	env.t.Helper()
	var negotiation models.Negotiation
	if err := env.db.First(&negotiation, negotiationID).Error; err != nil {
		env.t.Fatalf("reload negotiation %d: %v", negotiationID, err)
	}
	return negotiation
}

func containsUser(ids []uint, userID uint) bool {
	for _, id := range ids {
		if id == userID {
			return true
		}
	}
	return false
}

func TestOpenPitchCreatesNegotiationAndFoundingMeeting(t *testing.T) {
	env := newTestEnv(t)

	negotiation, meeting, effects := env.openPitch(env.invUser, env.entProject.ID)

	if negotiation.Stage != models.StagePitch {
		t.Fatalf("expected pitch stage, got %s", negotiation.Stage)
	}
	if negotiation.OwnerStatus != models.PartyAwaitingAction || negotiation.CapitalStatus != models.PartyAwaitingAction {
		t.Fatalf("expected both sides awaiting action, got %s/%s", negotiation.OwnerStatus, negotiation.CapitalStatus)
	}
	if negotiation.CapitalPartyType != models.CapitalInvestor || negotiation.CapitalPartyID != env.inv.ID {
		t.Fatalf("expected investor capital party, got %s/%d", negotiation.CapitalPartyType, negotiation.CapitalPartyID)
	}

	if meeting.NegotiationID == nil || *meeting.NegotiationID != negotiation.ID {
		t.Fatalf("expected meeting bound to negotiation %d", negotiation.ID)
	}
	if !meeting.EndDate.Equal(meeting.StartDate.Add(time.Hour)) {
		t.Fatalf("expected end date exactly one hour after start, got %s", meeting.EndDate)
	}
	if meeting.EntrepreneurID == nil || *meeting.EntrepreneurID != env.ent.ID {
		t.Fatalf("expected entrepreneur participant")
	}
	if meeting.RoomURL == "" {
		t.Fatalf("expected provisioned room url")
	}
	var joins []models.MeetingInvestor
	if err := env.db.Where("meeting_id = ?", meeting.ID).Find(&joins).Error; err != nil {
		t.Fatalf("load investor joins: %v", err)
	}
	if len(joins) != 1 || joins[0].InvestorID != env.inv.ID {
		t.Fatalf("expected one investor participant, got %+v", joins)
	}

	if len(effects) != 1 {
		t.Fatalf("expected one effect, got %d", len(effects))
	}
	effect := effects[0]
	if effect.Event != models.EventMeetingCreated {
		t.Fatalf("expected meeting_created event, got %s", effect.Event)
	}
	if len(effect.RecipientUserIDs) != 2 ||
		!containsUser(effect.RecipientUserIDs, env.entUser.ID) ||
		!containsUser(effect.RecipientUserIDs, env.invUser.ID) {
		t.Fatalf("expected both sides notified, got %v", effect.RecipientUserIDs)
	}
	if effect.Email == nil || len(effect.Email.Recipients) != 2 {
		t.Fatalf("expected email to both sides, got %+v", effect.Email)
	}
	if effect.Email.CTAURL != meeting.RoomURL {
		t.Fatalf("expected email CTA to link the room, got %q", effect.Email.CTAURL)
	}
}

func TestOpenPitchRejectsDuplicatePair(t *testing.T) {
	env := newTestEnv(t)
	env.openPitch(env.invUser, env.entProject.ID)

	_, _, _, err := env.eng.OpenPitch(context.Background(), env.invUser.ID, env.entProject.ID, env.futureDate())
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if got := env.countRows(&models.Negotiation{}); got != 1 {
		t.Fatalf("expected one negotiation, got %d", got)
	}
	if got := env.countRows(&models.Meeting{}); got != 1 {
		t.Fatalf("expected one meeting, got %d", got)
	}
}

func TestOpenPitchAllowedAfterCancellation(t *testing.T) {
	env := newTestEnv(t)
	negotiation, _, _ := env.openPitch(env.invUser, env.entProject.ID)

	if _, _, err := env.eng.Cancel(context.Background(), env.invUser.ID, negotiation.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	reopened, _, _ := env.openPitch(env.invUser, env.entProject.ID)
	if reopened.ID == negotiation.ID {
		t.Fatalf("expected a fresh negotiation after cancellation")
	}
	if got := env.countRows(&models.Negotiation{}); got != 2 {
		t.Fatalf("expected cancelled row preserved, got %d rows", got)
	}
}

func TestOpenPitchRejectsPastDate(t *testing.T) {
	env := newTestEnv(t)

	for _, date := range []time.Time{env.now, env.now.Add(-time.Minute)} {
		_, _, _, err := env.eng.OpenPitch(context.Background(), env.invUser.ID, env.entProject.ID, date)
		if !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("expected invalid argument for %s, got %v", date, err)
		}
	}
	if env.rooms.calls != 0 {
		t.Fatalf("expected no room provisioning, got %d calls", env.rooms.calls)
	}
	if got := env.countRows(&models.Meeting{}); got != 0 {
		t.Fatalf("expected no meeting rows, got %d", got)
	}
}

func TestOpenPitchRoomFailurePersistsNothing(t *testing.T) {
	env := newTestEnv(t)
	env.rooms.fail = true

	_, _, _, err := env.eng.OpenPitch(context.Background(), env.invUser.ID, env.entProject.ID, env.futureDate())
	if !errors.Is(err, ErrDependencyFailure) {
		t.Fatalf("expected dependency failure, got %v", err)
	}
	if got := env.countRows(&models.Negotiation{}); got != 0 {
		t.Fatalf("expected no negotiation rows, got %d", got)
	}
	if got := env.countRows(&models.Meeting{}); got != 0 {
		t.Fatalf("expected no meeting rows, got %d", got)
	}
}

func TestOpenPitchRequiresCapitalRole(t *testing.T) {
	env := newTestEnv(t)

	_, _, _, err := env.eng.OpenPitch(context.Background(), env.entUser.ID, env.entProject.ID, env.futureDate())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for non-capital actor, got %v", err)
	}
}

func TestAdvanceDualConsentIsOrderInsensitive(t *testing.T) {
	tests := []struct {
		name   string
		actors func(env *testEnv) [2]models.User
	}{
		{"owner then capital", func(env *testEnv) [2]models.User { return [2]models.User{env.entUser, env.invUser} }},
		{"capital then owner", func(env *testEnv) [2]models.User { return [2]models.User{env.invUser, env.entUser} }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			negotiation, _, _ := env.openPitch(env.invUser, env.entProject.ID)
			actors := tc.actors(env)

			first, effects, err := env.eng.Advance(context.Background(), actors[0].ID, negotiation.ID)
			if err != nil {
				t.Fatalf("first advance: %v", err)
			}
			if first.Stage != models.StagePitch {
				t.Fatalf("expected stage unchanged after one consent, got %s", first.Stage)
			}
			if len(effects) != 0 {
				t.Fatalf("expected no effects before the transition, got %d", len(effects))
			}

			second, effects, err := env.eng.Advance(context.Background(), actors[1].ID, negotiation.ID)
			if err != nil {
				t.Fatalf("second advance: %v", err)
			}
			if second.Stage != models.StageNegotiation {
				t.Fatalf("expected negotiation stage, got %s", second.Stage)
			}
			if second.OwnerStatus != models.PartyIdle || second.CapitalStatus != models.PartyIdle {
				t.Fatalf("expected consents consumed, got %s/%s", second.OwnerStatus, second.CapitalStatus)
			}
			if len(effects) != 1 || effects[0].Event != models.EventNegotiationAdvanced {
				t.Fatalf("expected one advanced effect, got %+v", effects)
			}
			if len(effects[0].RecipientUserIDs) != 2 {
				t.Fatalf("expected both sides notified of the transition")
			}
		})
	}
}

func TestAdvanceRepeatedConsentDoesNotAdvance(t *testing.T) {
	env := newTestEnv(t)
	negotiation, _, _ := env.openPitch(env.invUser, env.entProject.ID)

	for i := 0; i < 2; i++ {
		updated, _, err := env.eng.Advance(context.Background(), env.entUser.ID, negotiation.ID)
		if err != nil {
			t.Fatalf("advance %d: %v", i, err)
		}
		if updated.Stage != models.StagePitch {
			t.Fatalf("expected stage unchanged, got %s", updated.Stage)
		}
		if updated.OwnerStatus != models.PartyAgreed {
			t.Fatalf("expected owner agreed, got %s", updated.OwnerStatus)
		}
		if updated.CapitalStatus != models.PartyAwaitingAction {
			t.Fatalf("expected capital still awaiting, got %s", updated.CapitalStatus)
		}
	}

	final, _, err := env.eng.Advance(context.Background(), env.invUser.ID, negotiation.ID)
	if err != nil {
		t.Fatalf("capital advance: %v", err)
	}
	if final.Stage != models.StageNegotiation {
		t.Fatalf("expected advance after both consents, got %s", final.Stage)
	}
}

func TestAdvanceWalksAllStagesThenRejects(t *testing.T) {
	env := newTestEnv(t)
	negotiation, _, _ := env.openPitch(env.invUser, env.entProject.ID)

	expected := []models.NegotiationStage{models.StageNegotiation, models.StageDetails, models.StageClosed}
	for _, stage := range expected {
		if _, _, err := env.eng.Advance(context.Background(), env.entUser.ID, negotiation.ID); err != nil {
			t.Fatalf("owner advance toward %s: %v", stage, err)
		}
		updated, _, err := env.eng.Advance(context.Background(), env.invUser.ID, negotiation.ID)
		if err != nil {
			t.Fatalf("capital advance toward %s: %v", stage, err)
		}
		if updated.Stage != stage {
			t.Fatalf("expected %s, got %s", stage, updated.Stage)
		}
	}

	_, _, err := env.eng.Advance(context.Background(), env.entUser.ID, negotiation.ID)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected invalid state on closed negotiation, got %v", err)
	}
}

func TestAdvanceByStrangerFails(t *testing.T) {
	env := newTestEnv(t)
	negotiation, _, _ := env.openPitch(env.invUser, env.entProject.ID)

	_, _, err := env.eng.Advance(context.Background(), env.vcUser.ID, negotiation.ID)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for stranger, got %v", err)
	}
	if got := env.reload(negotiation.ID); got.Stage != models.StagePitch {
		t.Fatalf("expected stage untouched, got %s", got.Stage)
	}
}

func TestCancelNotifiesOnlyTheCounterpart(t *testing.T) {
	env := newTestEnv(t)
	negotiation, _, _ := env.openPitch(env.invUser, env.entProject.ID)

	cancelled, effects, err := env.eng.Cancel(context.Background(), env.invUser.ID, negotiation.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Stage != models.StageCancelled {
		t.Fatalf("expected cancelled stage, got %s", cancelled.Stage)
	}
	if cancelled.OwnerStatus != models.PartyIdle || cancelled.CapitalStatus != models.PartyIdle {
		t.Fatalf("expected both sides idle, got %s/%s", cancelled.OwnerStatus, cancelled.CapitalStatus)
	}

	if len(effects) != 1 {
		t.Fatalf("expected one cancellation effect, got %d", len(effects))
	}
	effect := effects[0]
	if effect.Event != models.EventNegotiationCancelled {
		t.Fatalf("expected negotiation_cancelled, got %s", effect.Event)
	}
	if len(effect.RecipientUserIDs) != 1 || effect.RecipientUserIDs[0] != env.entUser.ID {
		t.Fatalf("expected only the entrepreneur notified, got %v", effect.RecipientUserIDs)
	}
	if effect.Email == nil || len(effect.Email.Recipients) != 1 || effect.Email.Recipients[0].Address != env.entUser.Email {
		t.Fatalf("expected email to the entrepreneur, got %+v", effect.Email)
	}
}

func TestCancelTerminalNegotiationIsNoop(t *testing.T) {
	env := newTestEnv(t)
	negotiation, _, _ := env.openPitch(env.invUser, env.entProject.ID)

	if _, _, err := env.eng.Cancel(context.Background(), env.invUser.ID, negotiation.ID); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	again, effects, err := env.eng.Cancel(context.Background(), env.entUser.ID, negotiation.ID)
	if err != nil {
		t.Fatalf("second cancel: %v", err)
	}
	if again.Stage != models.StageCancelled {
		t.Fatalf("expected cancelled stage, got %s", again.Stage)
	}
	if len(effects) != 0 {
		t.Fatalf("expected no effects on no-op cancel, got %d", len(effects))
	}
}

func TestScheduleFollowUpRequiresPostPitchStage(t *testing.T) {
	env := newTestEnv(t)
	negotiation, _, _ := env.openPitch(env.invUser, env.entProject.ID)

	_, _, err := env.eng.ScheduleFollowUp(context.Background(), env.invUser.ID, negotiation.ID, env.futureDate())
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected invalid state at pitch, got %v", err)
	}

	_, _, err = env.eng.ScheduleFollowUp(context.Background(), env.invUser.ID, 9999, env.futureDate())
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected invalid state for missing negotiation, got %v", err)
	}
}

func TestScheduleFollowUpReopensTheRound(t *testing.T) {
	env := newTestEnv(t)
	negotiation, _, _ := env.openPitch(env.invUser, env.entProject.ID)

	// Move past pitch first.
	if _, _, err := env.eng.Advance(context.Background(), env.entUser.ID, negotiation.ID); err != nil {
		t.Fatalf("owner advance: %v", err)
	}
	if _, _, err := env.eng.Advance(context.Background(), env.invUser.ID, negotiation.ID); err != nil {
		t.Fatalf("capital advance: %v", err)
	}

	meeting, effects, err := env.eng.ScheduleFollowUp(context.Background(), env.entUser.ID, negotiation.ID, env.futureDate())
	if err != nil {
		t.Fatalf("schedule follow-up: %v", err)
	}
	if meeting.NegotiationID == nil || *meeting.NegotiationID != negotiation.ID {
		t.Fatalf("expected meeting bound to negotiation")
	}

	updated := env.reload(negotiation.ID)
	if updated.Stage != models.StageNegotiation {
		t.Fatalf("expected stage preserved, got %s", updated.Stage)
	}
	if updated.OwnerStatus != models.PartyAwaitingAction || updated.CapitalStatus != models.PartyAwaitingAction {
		t.Fatalf("expected both sides awaiting action again, got %s/%s", updated.OwnerStatus, updated.CapitalStatus)
	}
	if len(effects) != 1 || len(effects[0].RecipientUserIDs) != 2 {
		t.Fatalf("expected both sides notified of the follow-up, got %+v", effects)
	}
	if got := env.countRows(&models.Meeting{}); got != 2 {
		t.Fatalf("expected two meetings, got %d", got)
	}
}

func TestGetForPartyAndProject(t *testing.T) {
	env := newTestEnv(t)
	negotiation, _, _ := env.openPitch(env.invUser, env.entProject.ID)

	for _, actor := range []models.User{env.invUser, env.entUser} {
		found, err := env.eng.GetForPartyAndProject(context.Background(), actor.ID, env.entProject.ID)
		if err != nil {
			t.Fatalf("lookup as %s: %v", actor.Name, err)
		}
		if found.ID != negotiation.ID {
			t.Fatalf("expected negotiation %d, got %d", negotiation.ID, found.ID)
		}
	}

	if _, err := env.eng.GetForPartyAndProject(context.Background(), env.vcUser.ID, env.entProject.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for uninvolved party, got %v", err)
	}

	if _, _, err := env.eng.Cancel(context.Background(), env.invUser.ID, negotiation.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := env.eng.GetForPartyAndProject(context.Background(), env.invUser.ID, env.entProject.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found after cancellation, got %v", err)
	}
}

func TestListNegotiationsScopedToParticipants(t *testing.T) {
	env := newTestEnv(t)
	env.openPitch(env.invUser, env.entProject.ID)
	env.openPitch(env.vcUser, env.incProject.ID)

	tests := []struct {
		actor models.User
		want  int
	}{
		{env.invUser, 1},
		{env.entUser, 1},
		{env.vcUser, 1},
		{env.incUser, 1},
	}
	for _, tc := range tests {
		got, err := env.eng.ListNegotiations(context.Background(), tc.actor.ID)
		if err != nil {
			t.Fatalf("list as %s: %v", tc.actor.Name, err)
		}
		if len(got) != tc.want {
			t.Fatalf("expected %d negotiations for %s, got %d", tc.want, tc.actor.Name, len(got))
		}
	}

	outsider := env.createUser("nobody@example.com", "Nobody")
	got, err := env.eng.ListNegotiations(context.Background(), outsider.ID)
	if err != nil {
		t.Fatalf("list as outsider: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no negotiations for outsider, got %d", len(got))
	}
}
