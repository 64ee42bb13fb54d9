package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"decisio/api/internal/analysis"
	"decisio/api/internal/archive"
	"decisio/api/internal/auth"
	"decisio/api/internal/authpw"
	"decisio/api/internal/config"
	"decisio/api/internal/decision"
	"decisio/api/internal/diff"
	"decisio/api/internal/export"
	"decisio/api/internal/search"
	"decisio/api/internal/store"
	"decisio/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Email        string
	JTI          string
	ExpiresAt    time.Time
}

const localAuthor = "You"

type recordStore interface {
	Scope() store.Scope
	List() []decision.Record
	Get(id string) (decision.Record, error)
	Select(id string) error
	Selected() (decision.Record, bool)
	Analyze(ctx context.Context, input decision.DecisionInput, userName string) (decision.Record, error)
	Refine(ctx context.Context, id, instruction string) (decision.Record, diff.View, error)
	Delete(ctx context.Context, id string) (bool, error)
	ClearAll(ctx context.Context) error
	Timeline(id string) ([]decision.Version, error)
	Compare(id string, from, to int) (diff.View, error)
}

type scopeSource interface {
	Scope() store.Scope
	OwnerID() string
}

type userStore interface {
	GetUserByID(ctx context.Context, userID string) (store.User, error)
	CreateFeedback(ctx context.Context, fb store.Feedback) error
	RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error
	IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error)
	Ping(ctx context.Context) error
}

type refreshStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID, displayName, email string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type prefsStore interface {
	Settings(ctx context.Context) (store.Settings, error)
	SaveSettings(ctx context.Context, s store.Settings) error
	Onboarded(ctx context.Context) (bool, error)
	SetOnboarded(ctx context.Context, done bool) error
}

type archiveService interface {
	EnsureRecordRepo(recordID string, initial archive.Snapshot, author string) error
	CommitVersion(recordID string, snapshot archive.Snapshot, author, message string) (store.CommitInfo, error)
	History(recordID string, limit int) ([]store.CommitInfo, error)
	Remove(recordID string) error
}

type searchService interface {
	Search(q search.Query) search.Response
	IndexRecord(ownerID string, rec decision.Record)
	DeleteRecord(ownerID, id string)
	ResetLocal(ownerID string, records []decision.Record)
}

type exportService interface {
	Export(rec decision.Record, req export.Request) (*export.Result, error)
}

type mediaStore interface {
	Upload(ctx context.Context, filename, contentType string, data []byte) (key, url string, err error)
}

type emailSender interface {
	IsConfigured() bool
	SendVerificationEmail(to, userName, verificationURL string) error
	SendPasswordResetEmail(to, userName, resetURL string) error
}

// Deps carries everything the service needs. Interfaces with a nil
// value mark an optional capability the deployment did not configure.
type Deps struct {
	Records  recordStore
	Scopes   scopeSource
	Users    userStore
	Sessions refreshStore
	AuthPW   *authpw.Service
	Broker   *auth.Broker
	Prefs    prefsStore
	Analyzer analysis.Analyzer
	Search   searchService
	Exporter exportService
	Archive  archiveService
	Media    mediaStore
	Emails   emailSender
}

type Service struct {
	cfg      config.Config
	records  recordStore
	scopes   scopeSource
	users    userStore
	sessions refreshStore
	authpw   *authpw.Service
	broker   *auth.Broker
	prefs    prefsStore
	analyzer analysis.Analyzer
	search   searchService
	exporter exportService
	archive  archiveService
	media    mediaStore
	emails   emailSender
}

func New(cfg config.Config, deps Deps) *Service {
	return &Service{
		cfg:      cfg,
		records:  deps.Records,
		scopes:   deps.Scopes,
		users:    deps.Users,
		sessions: deps.Sessions,
		authpw:   deps.AuthPW,
		broker:   deps.Broker,
		prefs:    deps.Prefs,
		analyzer: deps.Analyzer,
		search:   deps.Search,
		exporter: deps.Exporter,
		archive:  deps.Archive,
		media:    deps.Media,
		emails:   deps.Emails,
	}
}

func (s *Service) AuthPasswordService() *authpw.Service {
	return s.authpw
}

func (s *Service) SMTPConfigured() bool {
	return s.emails != nil && s.emails.IsConfigured()
}

func (s *Service) Ping(ctx context.Context) error {
	if s.users == nil {
		return nil
	}
	return s.users.Ping(ctx)
}

// SendVerificationEmail delivers the signup verification link when
// SMTP is configured.
func (s *Service) SendVerificationEmail(to, userName, token string) {
	if !s.SMTPConfigured() {
		return
	}
	url := fmt.Sprintf("%s/verify-email?token=%s", strings.TrimSuffix(s.cfg.AppBaseURL, "/"), token)
	_ = s.emails.SendVerificationEmail(to, userName, url)
}

// SendPasswordResetEmail delivers the reset link when SMTP is
// configured.
func (s *Service) SendPasswordResetEmail(to, userName, token string) {
	if !s.SMTPConfigured() {
		return
	}
	url := fmt.Sprintf("%s/reset-password?token=%s", strings.TrimSuffix(s.cfg.AppBaseURL, "/"), token)
	_ = s.emails.SendPasswordResetEmail(to, userName, url)
}

// CreateSession issues tokens for a verified user and announces the
// sign-in so the record scope switches to their remote store.
func (s *Service) CreateSession(ctx context.Context, user store.User) (Session, error) {
	session, err := s.issueSession(ctx, user)
	if err != nil {
		return Session{}, err
	}
	if s.broker != nil {
		s.broker.Publish(auth.Event{Account: &auth.Account{
			UserID:      user.ID,
			Email:       user.Email,
			DisplayName: user.DisplayName,
		}})
	}
	s.adoptProfileSettings(ctx, user)
	return session, nil
}

// adoptProfileSettings fills empty settings fields from the account
// profile on sign-in. Values the user already set are never replaced.
func (s *Service) adoptProfileSettings(ctx context.Context, user store.User) {
	if s.prefs == nil {
		return
	}
	settings, err := s.prefs.Settings(ctx)
	if err != nil {
		return
	}
	changed := false
	if settings.DisplayName == "" && user.DisplayName != "" {
		settings.DisplayName = user.DisplayName
		changed = true
	}
	if settings.Email == "" && user.Email != "" {
		settings.Email = user.Email
		changed = true
	}
	if changed {
		if err := s.prefs.SaveSettings(ctx, settings); err != nil {
			logComponentError("settings", err)
		}
	}
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	if s.sessions == nil {
		return Session{}, domainError(http.StatusServiceUnavailable, "AUTH_UNAVAILABLE", "Authentication service not configured", nil)
	}
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	// A refresh after restart means the user never signed out;
	// re-announce so the scope catches up.
	if s.broker != nil {
		s.broker.Publish(auth.Event{Account: &auth.Account{
			UserID:      user.ID,
			Email:       user.Email,
			DisplayName: user.DisplayName,
		}})
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:   user.ID,
		Name:  user.DisplayName,
		Email: user.Email,
		JTI:   jti,
		Exp:   expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if s.sessions != nil {
		if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, user.DisplayName, user.Email, refreshExpires); err != nil {
			return Session{}, err
		}
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Email:        user.Email,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	if s.users != nil {
		revoked, err := s.users.IsAccessTokenRevoked(ctx, claims.JTI)
		if err != nil {
			return Session{}, err
		}
		if revoked {
			return Session{}, auth.ErrInvalidToken
		}
	}

	session := Session{
		Token:     token,
		UserID:    claims.Sub,
		UserName:  claims.Name,
		Email:     claims.Email,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}
	if s.users != nil {
		user, err := s.users.GetUserByID(ctx, claims.Sub)
		if err != nil {
			return Session{}, err
		}
		session.UserName = user.DisplayName
		session.Email = user.Email
	}
	return session, nil
}

// Logout revokes the session and announces the sign-out so the record
// scope drops back to the device store.
func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" && s.users != nil {
		_ = s.users.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" && s.sessions != nil {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	if s.broker != nil {
		s.broker.Publish(auth.Event{Account: nil})
	}
	return nil
}

// Records

func (s *Service) ListRecords(ctx context.Context) map[string]any {
	records := s.records.List()
	items := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		items = append(items, recordSummary(rec))
	}

	selectedID := any(nil)
	if rec, ok := s.records.Selected(); ok {
		selectedID = rec.ID
	}

	return map[string]any{
		"scope":      string(s.records.Scope()),
		"records":    items,
		"selectedId": selectedID,
	}
}

func (s *Service) GetRecord(ctx context.Context, id string) (map[string]any, error) {
	rec, err := s.records.Get(id)
	if err != nil {
		return nil, err
	}
	return recordPayload(rec), nil
}

func (s *Service) CreateRecord(ctx context.Context, input decision.DecisionInput, session Session) (map[string]any, error) {
	input.Normalize()
	if err := input.Validate(); err != nil {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	}

	author := session.UserName
	if author == "" {
		author = localAuthor
	}

	rec, err := s.records.Analyze(ctx, input, author)
	if err != nil {
		return nil, err
	}

	if s.archive != nil {
		if archiveErr := s.archive.EnsureRecordRepo(rec.ID, archive.Snapshot{
			RecordID: rec.ID,
			Title:    rec.Title,
			Analysis: rec.Analysis,
		}, author); archiveErr != nil {
			logComponentError("archive", archiveErr)
		}
	}
	if s.search != nil {
		s.search.IndexRecord(s.scopes.OwnerID(), rec)
	}

	return recordPayload(rec), nil
}

func (s *Service) RefineRecord(ctx context.Context, id, instruction string, session Session) (map[string]any, error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "instruction is required", nil)
	}

	rec, view, err := s.records.Refine(ctx, id, instruction)
	if err != nil {
		return nil, err
	}

	author := session.UserName
	if author == "" {
		author = localAuthor
	}
	if s.archive != nil {
		if _, archiveErr := s.archive.CommitVersion(rec.ID, archive.Snapshot{
			RecordID:    rec.ID,
			Title:       rec.Title,
			Instruction: instruction,
			Analysis:    rec.Analysis,
		}, author, "Refine: "+instruction); archiveErr != nil {
			logComponentError("archive", archiveErr)
		}
	}
	if s.search != nil {
		s.search.IndexRecord(s.scopes.OwnerID(), rec)
	}

	payload := recordPayload(rec)
	payload["diff"] = view
	return payload, nil
}

func (s *Service) DeleteRecord(ctx context.Context, id string) (map[string]any, error) {
	wasSelected, err := s.records.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.archive != nil {
		if archiveErr := s.archive.Remove(id); archiveErr != nil {
			logComponentError("archive", archiveErr)
		}
	}
	if s.search != nil {
		s.search.DeleteRecord(s.scopes.OwnerID(), id)
	}
	return map[string]any{"ok": true, "wasSelected": wasSelected}, nil
}

func (s *Service) ClearRecords(ctx context.Context) (map[string]any, error) {
	if err := s.records.ClearAll(ctx); err != nil {
		return nil, err
	}
	if s.search != nil {
		s.search.ResetLocal(s.scopes.OwnerID(), nil)
	}
	return map[string]any{"ok": true}, nil
}

func (s *Service) SelectRecord(ctx context.Context, id string) (map[string]any, error) {
	if err := s.records.Select(id); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true, "selectedId": id}, nil
}

func (s *Service) RecordTimeline(ctx context.Context, id string) (map[string]any, error) {
	versions, err := s.records.Timeline(id)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(versions))
	for _, v := range versions {
		item := map[string]any{
			"index":     v.Index,
			"analysis":  v.Analysis,
			"timestamp": v.Timestamp,
		}
		if v.Instruction != "" {
			item["instruction"] = v.Instruction
		}
		items = append(items, item)
	}
	return map[string]any{"recordId": id, "versions": items}, nil
}

func (s *Service) CompareVersions(ctx context.Context, id string, from, to int) (map[string]any, error) {
	view, err := s.records.Compare(id, from, to)
	if err != nil {
		return nil, err
	}
	return map[string]any{"recordId": id, "from": from, "to": to, "diff": view}, nil
}

func (s *Service) ExportRecord(ctx context.Context, id string, version int, format export.Format) (*export.Result, error) {
	if s.exporter == nil {
		return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export is not configured", nil)
	}
	rec, err := s.records.Get(id)
	if err != nil {
		return nil, err
	}
	return s.exporter.Export(rec, export.Request{RecordID: id, Version: version, Format: format})
}

func (s *Service) ArchiveHistory(ctx context.Context, id string, limit int) (map[string]any, error) {
	if s.archive == nil {
		return nil, domainError(http.StatusServiceUnavailable, "ARCHIVE_UNAVAILABLE", "Archive is not configured", nil)
	}
	if _, err := s.records.Get(id); err != nil {
		return nil, err
	}
	commits, err := s.archive.History(id, limit)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(commits))
	for _, c := range commits {
		items = append(items, map[string]any{
			"hash":      c.Hash,
			"message":   c.Message,
			"author":    c.Author,
			"createdAt": c.CreatedAt.UnixMilli(),
		})
	}
	return map[string]any{"recordId": id, "commits": items}, nil
}

// Suggestions

func (s *Service) SuggestQuestion(ctx context.Context, draft string) (map[string]any, error) {
	if s.analyzer == nil {
		return nil, domainError(http.StatusServiceUnavailable, "ANALYSIS_UNAVAILABLE", "Analysis is not configured", nil)
	}
	draft = strings.TrimSpace(draft)
	if draft == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "draft is required", nil)
	}
	question, err := s.analyzer.SuggestQuestion(ctx, draft)
	if err != nil {
		return nil, err
	}
	return map[string]any{"question": question}, nil
}

func (s *Service) SuggestOptions(ctx context.Context, question string) (map[string]any, error) {
	if s.analyzer == nil {
		return nil, domainError(http.StatusServiceUnavailable, "ANALYSIS_UNAVAILABLE", "Analysis is not configured", nil)
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "question is required", nil)
	}
	options, err := s.analyzer.SuggestOptions(ctx, question)
	if err != nil {
		return nil, err
	}
	return map[string]any{"options": options}, nil
}

func (s *Service) SuggestCriteria(ctx context.Context, question string) (map[string]any, error) {
	if s.analyzer == nil {
		return nil, domainError(http.StatusServiceUnavailable, "ANALYSIS_UNAVAILABLE", "Analysis is not configured", nil)
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "question is required", nil)
	}
	criteria, err := s.analyzer.SuggestCriteria(ctx, question)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(criteria))
	for _, c := range criteria {
		items = append(items, map[string]any{"name": c.Name, "weight": c.Weight})
	}
	return map[string]any{"criteria": items}, nil
}

// Settings and onboarding

func (s *Service) Settings(ctx context.Context) (map[string]any, error) {
	settings, err := s.prefs.Settings(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"settings": settings}, nil
}

func (s *Service) SaveSettings(ctx context.Context, settings store.Settings) (map[string]any, error) {
	if err := s.prefs.SaveSettings(ctx, settings); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true, "settings": settings}, nil
}

func (s *Service) Onboarded(ctx context.Context) (map[string]any, error) {
	done, err := s.prefs.Onboarded(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"onboarded": done}, nil
}

func (s *Service) SetOnboarded(ctx context.Context, done bool) (map[string]any, error) {
	if err := s.prefs.SetOnboarded(ctx, done); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true, "onboarded": done}, nil
}

// Feedback

func (s *Service) SubmitFeedback(ctx context.Context, session Session, category, message string) (map[string]any, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "message is required", nil)
	}
	category = strings.TrimSpace(category)
	if category == "" {
		category = "general"
	}
	fb := store.Feedback{
		ID:       util.NewID("fb"),
		UserID:   session.UserID,
		Category: category,
		Message:  message,
	}
	// Without a remote store the submission is accepted and logged, so
	// local-only deployments still get a working feedback button.
	if s.users == nil {
		log.Printf(`{"component":"feedback","id":%q,"category":%q,"message":%q}`, fb.ID, fb.Category, fb.Message)
		return map[string]any{"ok": true, "id": fb.ID}, nil
	}
	if err := s.users.CreateFeedback(ctx, fb); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true, "id": fb.ID}, nil
}

// Search

func (s *Service) SearchRecords(ctx context.Context, text string, limit, offset int) search.Response {
	return s.search.Search(search.Query{
		Text:    text,
		OwnerID: s.scopes.OwnerID(),
		Limit:   limit,
		Offset:  offset,
	})
}

// Media

func (s *Service) UploadMedia(ctx context.Context, filename, contentType string, data []byte) (map[string]any, error) {
	if s.media == nil {
		return nil, domainError(http.StatusServiceUnavailable, "MEDIA_UNAVAILABLE", "Media storage is not configured", nil)
	}
	if len(data) == 0 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "file is empty", nil)
	}
	key, url, err := s.media.Upload(ctx, filename, contentType, data)
	if err != nil {
		return nil, fmt.Errorf("upload media: %w", err)
	}
	return map[string]any{"key": key, "url": url, "contentType": contentType}, nil
}

// Payload helpers

func recordSummary(rec decision.Record) map[string]any {
	return map[string]any{
		"id":           rec.ID,
		"title":        rec.Title,
		"createdAt":    rec.CreatedAt,
		"versionCount": decision.VersionCount(rec),
		"recommended":  rec.Analysis.Recommendation.SuggestedOption,
		"safetyOnly":   rec.Analysis.SafetyOnly(),
	}
}

func recordPayload(rec decision.Record) map[string]any {
	return map[string]any{
		"id":           rec.ID,
		"title":        rec.Title,
		"input":        rec.Input,
		"analysis":     rec.Analysis,
		"createdAt":    rec.CreatedAt,
		"versionCount": decision.VersionCount(rec),
	}
}
