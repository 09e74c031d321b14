package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"clubladder/internal/db"
	"clubladder/internal/httputil"
	"clubladder/internal/league"
	"clubladder/internal/middleware"
	"clubladder/internal/rating"
	"clubladder/internal/scoring"
	"clubladder/internal/service"
	"clubladder/internal/store"
	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/markbates/goth/gothic"
)

type services struct {
	users   *service.UserService
	ratings *service.RatingService
	points  *service.PointService
	history *service.HistoryService
	leagues *store.LeagueStore
}

func buildServices(dbConn *sqlx.DB) *services {
	ratingStore := store.NewRatingStore(dbConn)
	pointStore := store.NewPointStore(dbConn)
	leagueStore := store.NewLeagueStore(dbConn)
	return &services{
		users:   service.NewUserService(dbConn, store.NewUserStore(dbConn)),
		ratings: service.NewRatingService(dbConn, ratingStore, rating.ConfigFromEnv()),
		points:  service.NewPointService(dbConn, pointStore, leagueStore),
		history: service.NewHistoryService(dbConn, pointStore, leagueStore, ratingStore),
		leagues: leagueStore,
	}
}

func newRouter(sessionManager *scs.SessionManager) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(sessionManager.LoadAndSave)
	r.Use(middleware.LoadAuthenticatedUser(sessionManager, store.NewUserStore(db.GetDB())))

	// Read side: snapshot reads, no session required.
	r.Get("/api/events/{id}/leaderboard", func(w http.ResponseWriter, r *http.Request) {
		svc := buildServices(db.GetDB())
		eventID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httputil.BadRequest(w, "Invalid event ID", err)
			return
		}

		filter, err := parseEntryFilter(r)
		if err != nil {
			httputil.BadRequest(w, err.Error(), err)
			return
		}

		var totals map[string]*service.Totals
		if r.URL.Query().Get("view") == "contributions" {
			totals, err = svc.points.AggregateContributions(r.Context(), eventID, filter)
		} else {
			totals, err = svc.points.Aggregate(r.Context(), eventID, filter)
		}
		if err != nil {
			writeEngineError(w, "Failed to aggregate points", err)
			return
		}

		// One snapshot feeds both aggregation and ranking; paging happens
		// after the full build so ranks stay consistent across pages.
		board := service.BuildLeaderboard(totals)
		limit, offset := parsePagination(r)
		httputil.JSON(w, http.StatusOK, service.PageLeaderboard(board, limit, offset))
	})

	r.Get("/api/events/{id}/history", func(w http.ResponseWriter, r *http.Request) {
		svc := buildServices(db.GetDB())
		eventID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httputil.BadRequest(w, "Invalid event ID", err)
			return
		}

		limit, offset := parsePagination(r)
		items, err := svc.history.Project(r.Context(), eventID, limit, offset)
		if err != nil {
			writeEngineError(w, "Failed to project scoring history", err)
			return
		}
		httputil.JSON(w, http.StatusOK, items)
	})

	r.Get("/api/ratings/{type}/{id}", func(w http.ResponseWriter, r *http.Request) {
		svc := buildServices(db.GetDB())
		participant, gameTypeID, err := parseRatingScope(r)
		if err != nil {
			httputil.BadRequest(w, err.Error(), err)
			return
		}

		record, err := svc.ratings.CurrentRating(r.Context(), participant, gameTypeID)
		if err != nil {
			httputil.InternalServerError(w, "Failed to load rating", err)
			return
		}
		httputil.JSON(w, http.StatusOK, record)
	})

	r.Get("/api/ratings/{type}/{id}/history", func(w http.ResponseWriter, r *http.Request) {
		svc := buildServices(db.GetDB())
		participant, gameTypeID, err := parseRatingScope(r)
		if err != nil {
			httputil.BadRequest(w, err.Error(), err)
			return
		}

		limit, offset := parsePagination(r)
		entries, err := svc.ratings.RatingHistory(r.Context(), participant, gameTypeID, limit, offset)
		if err != nil {
			httputil.InternalServerError(w, "Failed to load rating history", err)
			return
		}
		httputil.JSON(w, http.StatusOK, entries)
	})

	// Write side: session required. Who may submit is decided here at the
	// boundary; the engine itself takes explicit identifiers only.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)

		r.Post("/api/leagues", func(w http.ResponseWriter, r *http.Request) {
			svc := buildServices(db.GetDB())
			var body struct {
				Name string `json:"name"`
			}
			if err := decodeBody(r, &body); err != nil || body.Name == "" {
				httputil.BadRequest(w, "Invalid league payload", err)
				return
			}
			ownerID, _ := middleware.GetUserIDFromContext(r.Context())
			l := &league.League{ID: uuid.New(), OwnerID: ownerID, Name: body.Name, CreatedAt: time.Now().UTC()}
			if err := svc.leagues.CreateLeague(r.Context(), l); err != nil {
				httputil.InternalServerError(w, "Failed to create league", err)
				return
			}
			httputil.JSON(w, http.StatusCreated, l)
		})

		r.Get("/api/leagues", func(w http.ResponseWriter, r *http.Request) {
			svc := buildServices(db.GetDB())
			ownerID, _ := middleware.GetUserIDFromContext(r.Context())
			leagues, err := svc.leagues.ListLeaguesByOwner(r.Context(), ownerID)
			if err != nil {
				httputil.InternalServerError(w, "Failed to list leagues", err)
				return
			}
			httputil.JSON(w, http.StatusOK, leagues)
		})

		r.Post("/api/leagues/{id}/events", func(w http.ResponseWriter, r *http.Request) {
			svc := buildServices(db.GetDB())
			leagueID, err := uuid.Parse(chi.URLParam(r, "id"))
			if err != nil {
				httputil.BadRequest(w, "Invalid league ID", err)
				return
			}
			var body struct {
				Name string `json:"name"`
			}
			if err := decodeBody(r, &body); err != nil || body.Name == "" {
				httputil.BadRequest(w, "Invalid event payload", err)
				return
			}
			e := &league.Event{ID: uuid.New(), LeagueID: leagueID, Name: body.Name, CreatedAt: time.Now().UTC()}
			if err := svc.leagues.CreateEvent(r.Context(), e); err != nil {
				httputil.InternalServerError(w, "Failed to create event", err)
				return
			}
			httputil.JSON(w, http.StatusCreated, e)
		})

		r.Post("/api/leagues/{id}/game-types", func(w http.ResponseWriter, r *http.Request) {
			svc := buildServices(db.GetDB())
			leagueID, err := uuid.Parse(chi.URLParam(r, "id"))
			if err != nil {
				httputil.BadRequest(w, "Invalid league ID", err)
				return
			}
			var body struct {
				Name string `json:"name"`
			}
			if err := decodeBody(r, &body); err != nil || body.Name == "" {
				httputil.BadRequest(w, "Invalid game type payload", err)
				return
			}
			gt := &league.GameType{ID: uuid.New(), LeagueID: leagueID, Name: body.Name, CreatedAt: time.Now().UTC()}
			if err := svc.leagues.CreateGameType(r.Context(), gt); err != nil {
				httputil.InternalServerError(w, "Failed to create game type", err)
				return
			}
			httputil.JSON(w, http.StatusCreated, gt)
		})

		r.Post("/api/leagues/{id}/teams", func(w http.ResponseWriter, r *http.Request) {
			svc := buildServices(db.GetDB())
			leagueID, err := uuid.Parse(chi.URLParam(r, "id"))
			if err != nil {
				httputil.BadRequest(w, "Invalid league ID", err)
				return
			}
			var body struct {
				Name      string      `json:"name"`
				MemberIDs []uuid.UUID `json:"member_ids"`
			}
			if err := decodeBody(r, &body); err != nil || body.Name == "" {
				httputil.BadRequest(w, "Invalid team payload", err)
				return
			}
			t := &league.Team{ID: uuid.New(), LeagueID: leagueID, Name: body.Name, CreatedAt: time.Now().UTC()}
			if err := svc.leagues.CreateTeam(r.Context(), t); err != nil {
				httputil.InternalServerError(w, "Failed to create team", err)
				return
			}
			if err := svc.leagues.AddTeamMembers(r.Context(), t.ID, body.MemberIDs); err != nil {
				httputil.InternalServerError(w, "Failed to add team members", err)
				return
			}
			httputil.JSON(w, http.StatusCreated, t)
		})

		r.Post("/api/leagues/{id}/placeholders", func(w http.ResponseWriter, r *http.Request) {
			svc := buildServices(db.GetDB())
			leagueID, err := uuid.Parse(chi.URLParam(r, "id"))
			if err != nil {
				httputil.BadRequest(w, "Invalid league ID", err)
				return
			}
			var body struct {
				Name string `json:"name"`
			}
			if err := decodeBody(r, &body); err != nil || body.Name == "" {
				httputil.BadRequest(w, "Invalid placeholder payload", err)
				return
			}
			p := &league.PlaceholderMember{ID: uuid.New(), LeagueID: leagueID, Name: body.Name, CreatedAt: time.Now().UTC()}
			if err := svc.leagues.CreatePlaceholderMember(r.Context(), p); err != nil {
				httputil.InternalServerError(w, "Failed to create placeholder member", err)
				return
			}
			httputil.JSON(w, http.StatusCreated, p)
		})

		r.Post("/api/matches/{id}/result", func(w http.ResponseWriter, r *http.Request) {
			svc := buildServices(db.GetDB())
			matchID, err := uuid.Parse(chi.URLParam(r, "id"))
			if err != nil {
				httputil.BadRequest(w, "Invalid match ID", err)
				return
			}
			var body struct {
				EventID    uuid.UUID `json:"event_id"`
				GameTypeID uuid.UUID `json:"game_type_id"`
				Sides      []struct {
					ParticipantID   uuid.UUID               `json:"participant_id"`
					ParticipantType scoring.ParticipantType `json:"participant_type"`
					Rank            int                     `json:"rank"`
					Points          int                     `json:"points"`
					Members         []uuid.UUID             `json:"members"`
				} `json:"sides"`
			}
			if err := decodeBody(r, &body); err != nil {
				httputil.BadRequest(w, "Invalid result payload", err)
				return
			}

			sides := make([]service.MatchSide, len(body.Sides))
			points := make([]service.MatchPointsInput, len(body.Sides))
			bestRank := 0
			worstRank := 0
			for _, s := range body.Sides {
				if bestRank == 0 || s.Rank < bestRank {
					bestRank = s.Rank
				}
				if s.Rank > worstRank {
					worstRank = s.Rank
				}
			}
			for i, s := range body.Sides {
				participant := scoring.Participant{ID: s.ParticipantID, Type: s.ParticipantType}
				sides[i] = service.MatchSide{Participant: participant, Rank: s.Rank}
				points[i] = service.MatchPointsInput{
					Participant: participant,
					Outcome:     outcomeForRank(s.Rank, bestRank, worstRank),
					Points:      s.Points,
					Members:     s.Members,
				}
			}

			// The points side is validated before the rating ledger moves.
			// Otherwise a bad event id would settle the ratings, leave no
			// point entries, and block the corrected resubmission on the
			// already-applied check.
			if err := svc.points.ValidateMatchPoints(r.Context(), body.EventID, points); err != nil {
				writeEngineError(w, "Invalid match points", err)
				return
			}
			history, err := svc.ratings.ApplyMatchResult(r.Context(), matchID, body.GameTypeID, sides)
			if err != nil {
				writeEngineError(w, "Failed to apply match result", err)
				return
			}
			entries, err := svc.points.RecordMatchPoints(r.Context(), body.EventID, matchID, points)
			if err != nil {
				writeEngineError(w, "Failed to record match points", err)
				return
			}

			httputil.JSON(w, http.StatusCreated, map[string]any{
				"rating_history": history,
				"point_entries":  entries,
			})
		})

		r.Post("/api/matches/{id}/reverse", func(w http.ResponseWriter, r *http.Request) {
			svc := buildServices(db.GetDB())
			matchID, err := uuid.Parse(chi.URLParam(r, "id"))
			if err != nil {
				httputil.BadRequest(w, "Invalid match ID", err)
				return
			}
			var body struct {
				EventID uuid.UUID `json:"event_id"`
			}
			if err := decodeBody(r, &body); err != nil {
				httputil.BadRequest(w, "Invalid reversal payload", err)
				return
			}

			// Same ordering concern as submission: confirm the event before
			// reversing ratings, so a typoed event id cannot reverse the
			// rating side alone.
			if _, err := svc.leagues.GetEvent(r.Context(), body.EventID); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					httputil.NotFound(w, "Unknown event", err)
				} else {
					httputil.InternalServerError(w, "Failed to load event", err)
				}
				return
			}
			history, err := svc.ratings.ReverseMatchResult(r.Context(), matchID)
			if err != nil {
				writeEngineError(w, "Failed to reverse match result", err)
				return
			}
			entries, err := svc.points.ReverseMatchPoints(r.Context(), body.EventID, matchID)
			if err != nil {
				writeEngineError(w, "Failed to reverse match points", err)
				return
			}

			httputil.JSON(w, http.StatusCreated, map[string]any{
				"rating_history": history,
				"point_entries":  entries,
			})
		})

		r.Post("/api/events/{id}/placements", func(w http.ResponseWriter, r *http.Request) {
			svc := buildServices(db.GetDB())
			eventID, err := uuid.Parse(chi.URLParam(r, "id"))
			if err != nil {
				httputil.BadRequest(w, "Invalid event ID", err)
				return
			}
			var body struct {
				TournamentID uuid.UUID `json:"tournament_id"`
				Placements   []struct {
					ParticipantID   uuid.UUID               `json:"participant_id"`
					ParticipantType scoring.ParticipantType `json:"participant_type"`
					Place           int                     `json:"place"`
					Points          int                     `json:"points"`
					Members         []uuid.UUID             `json:"members"`
				} `json:"placements"`
			}
			if err := decodeBody(r, &body); err != nil {
				httputil.BadRequest(w, "Invalid placements payload", err)
				return
			}

			placements := make([]service.PlacementInput, len(body.Placements))
			for i, p := range body.Placements {
				placements[i] = service.PlacementInput{
					Participant: scoring.Participant{ID: p.ParticipantID, Type: p.ParticipantType},
					Place:       p.Place,
					Points:      p.Points,
					Members:     p.Members,
				}
			}

			entries, err := svc.points.RecordTournamentPlacements(r.Context(), eventID, body.TournamentID, placements)
			if err != nil {
				writeEngineError(w, "Failed to record placements", err)
				return
			}
			httputil.JSON(w, http.StatusCreated, entries)
		})

		r.Post("/api/events/{id}/awards", func(w http.ResponseWriter, r *http.Request) {
			svc := buildServices(db.GetDB())
			eventID, err := uuid.Parse(chi.URLParam(r, "id"))
			if err != nil {
				httputil.BadRequest(w, "Invalid event ID", err)
				return
			}
			var body struct {
				ParticipantID   uuid.UUID               `json:"participant_id"`
				ParticipantType scoring.ParticipantType `json:"participant_type"`
				Points          int                     `json:"points"`
				Reason          string                  `json:"reason"`
			}
			if err := decodeBody(r, &body); err != nil {
				httputil.BadRequest(w, "Invalid award payload", err)
				return
			}

			entry, err := svc.points.RecordDiscretionaryAward(r.Context(), eventID,
				scoring.Participant{ID: body.ParticipantID, Type: body.ParticipantType},
				body.Points, body.Reason)
			if err != nil {
				writeEngineError(w, "Failed to record award", err)
				return
			}
			httputil.JSON(w, http.StatusCreated, entry)
		})
	})

	r.Get("/auth/{provider}", func(w http.ResponseWriter, r *http.Request) {
		provider := chi.URLParam(r, "provider")
		r = r.WithContext(context.WithValue(r.Context(), "provider", provider))

		gothic.BeginAuthHandler(w, r)
	})

	r.Get("/auth/{provider}/callback", func(w http.ResponseWriter, r *http.Request) {
		provider := chi.URLParam(r, "provider")
		r = r.WithContext(context.WithValue(r.Context(), "provider", provider))

		gothUser, err := gothic.CompleteUserAuth(w, r)
		if err != nil {
			httputil.BadRequest(w, "Authentication failure", err)
			return
		}

		svc := buildServices(db.GetDB())
		user, err := svc.users.FindOrCreateUserByProvider(r.Context(), gothUser)
		if err != nil {
			httputil.InternalServerError(w, "Failed to find or create user", err)
			return
		}

		sessionManager.Put(r.Context(), "userID", user.ID.String())

		http.Redirect(w, r, "/", http.StatusFound)
	})

	r.Post("/auth/guest", func(w http.ResponseWriter, r *http.Request) {
		svc := buildServices(db.GetDB())

		user, err := svc.users.EnsureGuestUser(r.Context())
		if err != nil {
			httputil.InternalServerError(w, "Failed to login as guest", err)
			return
		}

		sessionManager.Put(r.Context(), "userID", user.ID.String())
		httputil.JSON(w, http.StatusOK, map[string]string{"user_id": user.ID.String()})
	})

	r.Post("/logout", func(w http.ResponseWriter, r *http.Request) {
		sessionManager.Destroy(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	return r
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func parsePagination(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	return limit, offset
}

func parseEntryFilter(r *http.Request) (store.EntryFilter, error) {
	var filter store.EntryFilter
	for _, c := range r.URL.Query()["category"] {
		filter.Categories = append(filter.Categories, scoring.PointCategory(c))
	}
	if from := r.URL.Query().Get("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return filter, errors.New("invalid 'from' timestamp")
		}
		filter.From = &t
	}
	if to := r.URL.Query().Get("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return filter, errors.New("invalid 'to' timestamp")
		}
		filter.To = &t
	}
	return filter, nil
}

func parseRatingScope(r *http.Request) (scoring.Participant, uuid.UUID, error) {
	ptype := scoring.ParticipantType(chi.URLParam(r, "type"))
	if !ptype.Valid() {
		return scoring.Participant{}, uuid.Nil, errors.New("invalid participant type")
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return scoring.Participant{}, uuid.Nil, errors.New("invalid participant ID")
	}
	gameTypeID, err := uuid.Parse(r.URL.Query().Get("game_type"))
	if err != nil {
		return scoring.Participant{}, uuid.Nil, errors.New("invalid game_type")
	}
	return scoring.Participant{ID: id, Type: ptype}, gameTypeID, nil
}

func outcomeForRank(rank, bestRank, worstRank int) scoring.Outcome {
	switch {
	case bestRank == worstRank:
		return scoring.OutcomeDraw
	case rank == bestRank:
		return scoring.OutcomeWin
	default:
		return scoring.OutcomeLoss
	}
}

func writeEngineError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, scoring.ErrNotFound):
		httputil.NotFound(w, msg, err)
	case errors.Is(err, scoring.ErrInvalidInput):
		httputil.BadRequest(w, err.Error(), err)
	case errors.Is(err, scoring.ErrConflict), errors.Is(err, scoring.ErrAlreadyApplied):
		httputil.Conflict(w, err.Error(), err)
	default:
		httputil.InternalServerError(w, msg, err)
	}
}
