package approval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquafloor/projectguard/internal/model"
	"github.com/aquafloor/projectguard/internal/notify"
	"github.com/aquafloor/projectguard/internal/repository"
)

type fakeDecider struct {
	protection *model.Protection
	err        error
	rejectedBy string
}

func (d *fakeDecider) Approve(context.Context, uint64) (*model.Protection, error) {
	if d.err != nil {
		return nil, d.err
	}
	d.protection.Status = model.StatusActive
	return d.protection, nil
}

func (d *fakeDecider) Reject(_ context.Context, _ uint64, reason string) (*model.Protection, error) {
	if d.err != nil {
		return nil, d.err
	}
	d.protection.Status = model.StatusRejected
	d.rejectedBy = reason
	return d.protection, nil
}

type fakeDirectory struct {
	manager    *model.User
	assistants []model.User
	admins     []model.User
	supers     []model.User
}

func (d *fakeDirectory) ManagerByName(_ context.Context, name string) (*model.User, error) {
	if d.manager == nil || d.manager.FirstName != name {
		return nil, repository.ErrNotFound
	}
	return d.manager, nil
}

func (d *fakeDirectory) Assistants(context.Context, uint64) ([]model.User, error) {
	return d.assistants, nil
}

func (d *fakeDirectory) AdminsByGroup(_ context.Context, tag string) ([]model.User, error) {
	var out []model.User
	for _, a := range d.admins {
		if a.GroupTag == tag {
			out = append(out, a)
		}
	}
	return out, nil
}

func (d *fakeDirectory) Superadmins(context.Context) ([]model.User, error) {
	return d.supers, nil
}

type fakeFanouts struct {
	records   []model.FanoutRecord
	insertErr error
}

func (f *fakeFanouts) Insert(_ context.Context, rec *model.FanoutRecord) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	rec.ID = uint64(len(f.records) + 1)
	f.records = append(f.records, *rec)
	return nil
}

func (f *fakeFanouts) ListByProtection(_ context.Context, id uint64) ([]model.FanoutRecord, error) {
	var out []model.FanoutRecord
	for _, r := range f.records {
		if r.ProtectionID == id {
			out = append(out, r)
		}
	}
	return out, nil
}

type sentMessage struct {
	ChatID  int64
	Text    string
	Buttons []notify.Button
}

type editedMessage struct {
	ChatID    int64
	MessageID int64
	Text      string
}

type fakeGateway struct {
	sent      []sentMessage
	edited    []editedMessage
	failSend  map[int64]error // by chat id
	failEdit  map[int64]error // by message id
	nextMsgID int64
}

func (g *fakeGateway) Send(_ context.Context, chatID int64, text string, buttons []notify.Button) (int64, error) {
	if err := g.failSend[chatID]; err != nil {
		return 0, err
	}
	g.nextMsgID++
	g.sent = append(g.sent, sentMessage{ChatID: chatID, Text: text, Buttons: buttons})
	return g.nextMsgID, nil
}

func (g *fakeGateway) Edit(_ context.Context, chatID, messageID int64, text string) error {
	if err := g.failEdit[messageID]; err != nil {
		return err
	}
	g.edited = append(g.edited, editedMessage{ChatID: chatID, MessageID: messageID, Text: text})
	return nil
}

func testDirectory() *fakeDirectory {
	return &fakeDirectory{
		manager: &model.User{ID: 1, TelegramID: 100, FirstName: "Ivanov", Role: model.RoleManager, GroupTag: "north"},
		assistants: []model.User{
			{ID: 2, TelegramID: 200, Role: model.RoleAssistant},
		},
		admins: []model.User{
			{ID: 3, TelegramID: 300, Role: model.RoleAdmin, GroupTag: "north"},
			{ID: 4, TelegramID: 400, Role: model.RoleAdmin, GroupTag: "south"},
		},
		supers: []model.User{
			{ID: 5, TelegramID: 500, Role: model.RoleSuperadmin},
		},
	}
}

func testProtection() *model.Protection {
	area := 42.0
	return &model.Protection{
		ID:      7,
		Manager: "Ivanov",
		Partner: "FloorCo",
		SKU:     "AF2506 (adhesive)",
		AreaM2:  &area,
		Status:  model.StatusPending,
	}
}

func TestRecipients(t *testing.T) {
	wf := New(&fakeDecider{}, testDirectory(), &fakeFanouts{}, &fakeGateway{})

	got, err := wf.Recipients(context.Background(), "Ivanov")
	require.NoError(t, err)
	// Manager, assistant, group admin, superadmin; the south admin is
	// out of group and excluded.
	assert.Equal(t, []int64{100, 200, 300, 500}, got)
}

func TestRecipientsDedupeKeepsFirstSeenOrder(t *testing.T) {
	dir := testDirectory()
	// The group admin doubles as a superadmin entry and the manager
	// shows up again among assistants.
	dir.supers = append(dir.supers, model.User{ID: 3, TelegramID: 300})
	dir.assistants = append(dir.assistants, model.User{ID: 1, TelegramID: 100})
	wf := New(&fakeDecider{}, dir, &fakeFanouts{}, &fakeGateway{})

	got, err := wf.Recipients(context.Background(), "Ivanov")
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 200, 300, 500}, got)
}

func TestRecipientsUnknownManagerStillReachesSuperadmins(t *testing.T) {
	wf := New(&fakeDecider{}, testDirectory(), &fakeFanouts{}, &fakeGateway{})

	got, err := wf.Recipients(context.Background(), "Nobody")
	require.NoError(t, err)
	assert.Equal(t, []int64{500}, got)
}

func TestNotifyPending(t *testing.T) {
	gw := &fakeGateway{}
	fanouts := &fakeFanouts{}
	wf := New(&fakeDecider{}, testDirectory(), fanouts, gw)

	p := testProtection()
	require.NoError(t, wf.NotifyPending(context.Background(), p))

	require.Len(t, gw.sent, 4)
	assert.Contains(t, gw.sent[0].Text, "Ivanov")
	assert.Contains(t, gw.sent[0].Text, "FloorCo")
	require.Len(t, gw.sent[0].Buttons, 2)
	assert.Equal(t, "approve:7", gw.sent[0].Buttons[0].Data)
	assert.Equal(t, "reject:7", gw.sent[0].Buttons[1].Data)

	require.Len(t, fanouts.records, 4)
	assert.Equal(t, p.ID, fanouts.records[0].ProtectionID)
	assert.Equal(t, int64(100), fanouts.records[0].ChatID)
}

func TestNotifyPendingSkipsUnreachableRecipients(t *testing.T) {
	gw := &fakeGateway{failSend: map[int64]error{200: errors.New("blocked")}}
	fanouts := &fakeFanouts{}
	wf := New(&fakeDecider{}, testDirectory(), fanouts, gw)

	require.NoError(t, wf.NotifyPending(context.Background(), testProtection()))
	// Three of four deliveries land and only those grow handles.
	assert.Len(t, gw.sent, 3)
	assert.Len(t, fanouts.records, 3)
}

func TestApproveReconcilesEveryHandle(t *testing.T) {
	gw := &fakeGateway{}
	fanouts := &fakeFanouts{}
	decider := &fakeDecider{protection: testProtection()}
	wf := New(decider, testDirectory(), fanouts, gw)

	require.NoError(t, wf.NotifyPending(context.Background(), decider.protection))

	var decided *model.Protection
	wf.OnDecision(func(_ context.Context, p *model.Protection, approved bool) {
		decided = p
		assert.True(t, approved)
	})

	p, err := wf.Approve(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, p.Status)
	require.NotNil(t, decided)

	require.Len(t, gw.edited, 4)
	for _, e := range gw.edited {
		assert.Contains(t, e.Text, "approved")
	}
}

func TestApproveSurvivesEditFailures(t *testing.T) {
	gw := &fakeGateway{failEdit: map[int64]error{2: errors.New("message gone")}}
	fanouts := &fakeFanouts{}
	decider := &fakeDecider{protection: testProtection()}
	wf := New(decider, testDirectory(), fanouts, gw)

	require.NoError(t, wf.NotifyPending(context.Background(), decider.protection))

	// The second message cannot be edited; the decision still lands and
	// the remaining messages are reconciled.
	p, err := wf.Approve(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, p.Status)
	assert.Len(t, gw.edited, 3)
}

func TestRejectReconciles(t *testing.T) {
	gw := &fakeGateway{}
	fanouts := &fakeFanouts{}
	decider := &fakeDecider{protection: testProtection()}
	wf := New(decider, testDirectory(), fanouts, gw)

	require.NoError(t, wf.NotifyPending(context.Background(), decider.protection))

	p, err := wf.Reject(context.Background(), 7, "duplicate request")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, p.Status)
	assert.Equal(t, "duplicate request", decider.rejectedBy)
	require.Len(t, gw.edited, 4)
	assert.Contains(t, gw.edited[0].Text, "duplicate request")
}

func TestDecisionErrorSkipsReconciliation(t *testing.T) {
	gw := &fakeGateway{}
	decider := &fakeDecider{err: repository.ErrNotFound}
	wf := New(decider, testDirectory(), &fakeFanouts{}, gw)

	_, err := wf.Approve(context.Background(), 99)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Empty(t, gw.edited)
}

func TestSendReminder(t *testing.T) {
	gw := &fakeGateway{}
	wf := New(&fakeDecider{}, testDirectory(), &fakeFanouts{}, gw)

	p := testProtection()
	p.Status = model.StatusActive
	wf.SendReminder(context.Background(), p)

	// Manager and assistant only; no admins, no superadmins, no handles.
	require.Len(t, gw.sent, 2)
	assert.Equal(t, int64(100), gw.sent[0].ChatID)
	assert.Equal(t, int64(200), gw.sent[1].ChatID)
	assert.Empty(t, gw.sent[0].Buttons)
}

func TestSendReminderUnknownManagerIsNoop(t *testing.T) {
	gw := &fakeGateway{}
	wf := New(&fakeDecider{}, testDirectory(), &fakeFanouts{}, gw)

	p := testProtection()
	p.Manager = "Nobody"
	wf.SendReminder(context.Background(), p)
	assert.Empty(t, gw.sent)
}
