package teams

import (
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// RegisterTeamRoutes mounts the team management endpoints on a router.
func RegisterTeamRoutes[T any](app router.Router[T], opts ...TeamControllerOption) {
	controller := NewTeamController(opts...)

	app.Post(controller.Routes.Teams, controller.CreateTeam).
		SetName("teams.create")
	app.Put(controller.Routes.Team, controller.UpdateTeam).
		SetName("teams.update")
	app.Delete(controller.Routes.Team, controller.DeleteTeam).
		SetName("teams.delete")

	app.Post(controller.Routes.Invitations, controller.InviteMember).
		SetName("teams.invite")
	app.Post(controller.Routes.AcceptInvitation, controller.AcceptInvitation).
		SetName("teams.invite.accept")
	app.Delete(controller.Routes.Invitation, controller.RevokeInvitation).
		SetName("teams.invite.revoke")

	app.Get(controller.Routes.Members, controller.ListMembers).
		SetName("teams.members")
	app.Put(controller.Routes.MemberRole, controller.UpdateMemberRole).
		SetName("teams.member.role")
	app.Delete(controller.Routes.Member, controller.RemoveMember).
		SetName("teams.member.remove")
	app.Post(controller.Routes.TransferOwnership, controller.TransferOwnership).
		SetName("teams.transfer")

	app.Post(controller.Routes.Impersonate, controller.StartImpersonation).
		SetName("impersonation.start")
	app.Delete(controller.Routes.Impersonate, controller.StopImpersonation).
		SetName("impersonation.stop")
}

type TeamControllerRoutes struct {
	Teams             string
	Team              string
	Invitations       string
	Invitation        string
	AcceptInvitation  string
	Members           string
	MemberRole        string
	Member            string
	TransferOwnership string
	Impersonate       string
}

type TeamController struct {
	Logger       Logger
	Repo         RepositoryManager
	Provider     IdentityProvider
	Config       Config
	Sink         ActivitySink
	Impersonator *Impersonator
	Routes       *TeamControllerRoutes
}

type TeamControllerOption func(*TeamController) *TeamController

func WithControllerLogger(logger Logger) TeamControllerOption {
	return func(c *TeamController) *TeamController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithControllerSink(sink ActivitySink) TeamControllerOption {
	return func(c *TeamController) *TeamController {
		c.Sink = normalizeActivitySink(sink)
		return c
	}
}

func WithControllerRepo(repo RepositoryManager) TeamControllerOption {
	return func(c *TeamController) *TeamController {
		c.Repo = repo
		return c
	}
}

func WithControllerProvider(provider IdentityProvider) TeamControllerOption {
	return func(c *TeamController) *TeamController {
		c.Provider = provider
		return c
	}
}

func WithControllerConfig(cfg Config) TeamControllerOption {
	return func(c *TeamController) *TeamController {
		c.Config = cfg
		return c
	}
}

func WithControllerImpersonator(imp *Impersonator) TeamControllerOption {
	return func(c *TeamController) *TeamController {
		c.Impersonator = imp
		return c
	}
}

func NewTeamController(opts ...TeamControllerOption) *TeamController {
	c := &TeamController{
		Logger: defLogger{},
		Sink:   noopActivitySink{},
		Config: SimpleConfig{},
		Routes: &TeamControllerRoutes{
			Teams:             "/teams",
			Team:              "/teams/:team_id",
			Invitations:       "/teams/:team_id/invitations",
			Invitation:        "/teams/:team_id/invitations/:invite_id",
			AcceptInvitation:  "/invitations/accept",
			Members:           "/teams/:team_id/members",
			MemberRole:        "/teams/:team_id/members/:user_id/role",
			Member:            "/teams/:team_id/members/:user_id",
			TransferOwnership: "/teams/:team_id/transfer-ownership",
			Impersonate:       "/impersonation",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in team controller...")
	}

	if c.Provider == nil {
		panic("Missing IdentityProvider in team controller...")
	}

	if c.Impersonator == nil {
		c.Impersonator = NewImpersonator(c.Repo, c.Provider, c.Config).
			WithLogger(c.Logger).
			WithActivitySink(c.Sink)
	}

	return c
}

func (a *TeamController) CreateTeam(ctx router.Context) error {
	payload := new(CreateTeamMessage)
	if err := ctx.Bind(payload); err != nil {
		return a.renderError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse body"))
	}

	var res *CreateTeamResponse
	payload.OnResponse = func(resp *CreateTeamResponse) { res = resp }

	handler := NewCreateTeamHandler(a.Repo).WithLogger(a.Logger).WithActivitySink(a.Sink)
	if err := handler.Execute(ctx.Context(), *payload); err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.JSON(router.StatusCreated, res)
}

func (a *TeamController) UpdateTeam(ctx router.Context) error {
	teamID, err := a.paramUUID(ctx, "team_id")
	if err != nil {
		return a.renderError(ctx, err)
	}

	payload := new(UpdateTeamMessage)
	if err := ctx.Bind(payload); err != nil {
		return a.renderError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse body"))
	}
	payload.TeamID = teamID
	payload.Actor = a.actor(ctx)

	var res *UpdateTeamResponse
	payload.OnResponse = func(resp *UpdateTeamResponse) { res = resp }

	handler := NewUpdateTeamHandler(a.Repo).WithLogger(a.Logger).WithActivitySink(a.Sink)
	if err := handler.Execute(ctx.Context(), *payload); err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, res)
}

func (a *TeamController) DeleteTeam(ctx router.Context) error {
	teamID, err := a.paramUUID(ctx, "team_id")
	if err != nil {
		return a.renderError(ctx, err)
	}

	msg := DeleteTeamMessage{
		TeamID: teamID,
		Actor:  a.actor(ctx),
	}

	handler := NewDeleteTeamHandler(a.Repo).WithLogger(a.Logger).WithActivitySink(a.Sink)
	if err := handler.Execute(ctx.Context(), msg); err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{"success": true})
}

func (a *TeamController) InviteMember(ctx router.Context) error {
	teamID, err := a.paramUUID(ctx, "team_id")
	if err != nil {
		return a.renderError(ctx, err)
	}

	payload := new(InviteMemberMessage)
	if err := ctx.Bind(payload); err != nil {
		return a.renderError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse body"))
	}
	payload.TeamID = teamID
	payload.Actor = a.actor(ctx)

	var res *InviteMemberResponse
	payload.OnResponse = func(resp *InviteMemberResponse) { res = resp }

	handler := NewInviteMemberHandler(a.Repo, a.Provider, a.Config).
		WithLogger(a.Logger).
		WithActivitySink(a.Sink)
	if err := handler.Execute(ctx.Context(), *payload); err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.JSON(router.StatusCreated, res)
}

func (a *TeamController) AcceptInvitation(ctx router.Context) error {
	payload := new(AcceptInvitationMessage)
	if err := ctx.Bind(payload); err != nil {
		return a.renderError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse body"))
	}

	actor := a.actor(ctx)
	if payload.ActingUserID == uuid.Nil {
		payload.ActingUserID = actor.UserID
	}
	if payload.ActingEmail == "" {
		payload.ActingEmail = actor.Email
	}

	var res *AcceptInvitationResponse
	payload.OnResponse = func(resp *AcceptInvitationResponse) { res = resp }

	handler := NewAcceptInvitationHandler(a.Repo, a.Provider).
		WithLogger(a.Logger).
		WithActivitySink(a.Sink)
	if err := handler.Execute(ctx.Context(), *payload); err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, res)
}

func (a *TeamController) RevokeInvitation(ctx router.Context) error {
	inviteID, err := a.paramUUID(ctx, "invite_id")
	if err != nil {
		return a.renderError(ctx, err)
	}

	msg := RevokeInvitationMessage{
		InviteID: inviteID,
		Actor:    a.actor(ctx),
	}

	var res *RevokeInvitationResponse
	msg.OnResponse = func(resp *RevokeInvitationResponse) { res = resp }

	handler := NewRevokeInvitationHandler(a.Repo).WithLogger(a.Logger).WithActivitySink(a.Sink)
	if err := handler.Execute(ctx.Context(), msg); err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, res)
}

func (a *TeamController) ListMembers(ctx router.Context) error {
	teamID, err := a.paramUUID(ctx, "team_id")
	if err != nil {
		return a.renderError(ctx, err)
	}

	// Any member of the team may read the roster.
	if err := requireTeamActor(a.actor(ctx), teamID); err != nil {
		return a.renderError(ctx, err)
	}

	roster, err := MembersWithProfiles(ctx.Context(), a.Repo.Members(), a.Provider, teamID)
	if err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{"members": roster})
}

func (a *TeamController) UpdateMemberRole(ctx router.Context) error {
	teamID, err := a.paramUUID(ctx, "team_id")
	if err != nil {
		return a.renderError(ctx, err)
	}
	userID, err := a.paramUUID(ctx, "user_id")
	if err != nil {
		return a.renderError(ctx, err)
	}

	payload := new(UpdateMemberRoleMessage)
	if err := ctx.Bind(payload); err != nil {
		return a.renderError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse body"))
	}
	payload.TeamID = teamID
	payload.UserID = userID
	payload.Actor = a.actor(ctx)

	var res *UpdateMemberRoleResponse
	payload.OnResponse = func(resp *UpdateMemberRoleResponse) { res = resp }

	handler := NewUpdateMemberRoleHandler(a.Repo).WithLogger(a.Logger).WithActivitySink(a.Sink)
	if err := handler.Execute(ctx.Context(), *payload); err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, res)
}

func (a *TeamController) RemoveMember(ctx router.Context) error {
	teamID, err := a.paramUUID(ctx, "team_id")
	if err != nil {
		return a.renderError(ctx, err)
	}
	userID, err := a.paramUUID(ctx, "user_id")
	if err != nil {
		return a.renderError(ctx, err)
	}

	msg := RemoveMemberMessage{
		TeamID: teamID,
		UserID: userID,
		Actor:  a.actor(ctx),
	}

	handler := NewRemoveMemberHandler(a.Repo).WithLogger(a.Logger).WithActivitySink(a.Sink)
	if err := handler.Execute(ctx.Context(), msg); err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{"success": true})
}

func (a *TeamController) TransferOwnership(ctx router.Context) error {
	teamID, err := a.paramUUID(ctx, "team_id")
	if err != nil {
		return a.renderError(ctx, err)
	}

	payload := new(TransferOwnershipMessage)
	if err := ctx.Bind(payload); err != nil {
		return a.renderError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse body"))
	}
	payload.TeamID = teamID
	payload.Actor = a.actor(ctx)

	var res *TransferOwnershipResponse
	payload.OnResponse = func(resp *TransferOwnershipResponse) { res = resp }

	handler := NewTransferOwnershipHandler(a.Repo).WithLogger(a.Logger).WithActivitySink(a.Sink)
	if err := handler.Execute(ctx.Context(), *payload); err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, res)
}

// StartImpersonationPayload is the impersonation start request body.
type StartImpersonationPayload struct {
	TargetUserID uuid.UUID `json:"target_user_id"`
	Reason       string    `json:"reason"`
}

func (a *TeamController) StartImpersonation(ctx router.Context) error {
	payload := new(StartImpersonationPayload)
	if err := ctx.Bind(payload); err != nil {
		return a.renderError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse body"))
	}

	actor := a.actor(ctx)
	adminCredential := a.credential(ctx)

	grant, err := a.Impersonator.Start(ctx.Context(), actor, adminCredential, payload.TargetUserID, payload.Reason)
	if err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.JSON(router.StatusCreated, grant)
}

// StopImpersonationPayload is the impersonation stop request body. SessionID
// is optional; when absent every open session involving the caller is ended.
type StopImpersonationPayload struct {
	SessionID uuid.UUID `json:"session_id,omitempty"`
}

func (a *TeamController) StopImpersonation(ctx router.Context) error {
	payload := new(StopImpersonationPayload)
	if err := ctx.Bind(payload); err != nil {
		return a.renderError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse body"))
	}

	actor := a.actor(ctx)

	ended, err := a.Impersonator.Stop(ctx.Context(), StopImpersonationRequest{
		SessionID: payload.SessionID,
		UserID:    actor.UserID,
	})
	if err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success":  true,
		"sessions": ended,
	})
}

func (a *TeamController) actor(ctx router.Context) ActorContext {
	if actor, ok := ActorFromContext(ctx.Context()); ok {
		return actor
	}
	if actor, ok := ctx.Locals("actor").(ActorContext); ok {
		return actor
	}
	return ActorContext{}
}

func (a *TeamController) credential(ctx router.Context) Credential {
	if cred, ok := ctx.Locals("credential").(Credential); ok {
		return cred
	}
	return Credential{}
}

func (a *TeamController) paramUUID(ctx router.Context, name string) (uuid.UUID, error) {
	raw := ctx.Param(name, "")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, goerrors.New("invalid "+name, goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}
	return id, nil
}

// renderError maps structured errors to JSON responses. The go-errors code is
// used as the HTTP status when it carries one; category drives the fallback.
func (a *TeamController) renderError(ctx router.Context, err error) error {
	status := router.StatusInternalServerError
	body := map[string]any{
		"error": err.Error(),
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		if richErr.Code >= 400 && richErr.Code < 600 {
			status = int(richErr.Code)
		} else {
			switch richErr.Category {
			case goerrors.CategoryAuthz, goerrors.CategoryAuth:
				status = router.StatusForbidden
			case goerrors.CategoryValidation, goerrors.CategoryBadInput:
				status = router.StatusBadRequest
			case goerrors.CategoryConflict:
				status = router.StatusConflict
			case goerrors.CategoryNotFound:
				status = router.StatusNotFound
			}
		}
		if richErr.TextCode != "" {
			body["text_code"] = richErr.TextCode
		}
	} else {
		a.Logger.Error("unhandled controller error: %v", err)
	}

	return ctx.JSON(status, body)
}
