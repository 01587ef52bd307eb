// Package api provides HTTP handlers for DoughPilot endpoints.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/doughlab/DoughPilot/internal/models"
	"github.com/doughlab/DoughPilot/internal/sheets"
)

// loadRecipesRequest is the body of POST /recipes/load.
type loadRecipesRequest struct {
	URL string `json:"url"`
}

// loadRecipesHandler handles POST /recipes/load: fetch the document's tabs,
// compile them and add the results to the saved-recipe library.
func (s *Server) loadRecipesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.loadRecipesHandler: processing load request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.loadRecipesHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req loadRecipesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.loadRecipesHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.URL == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required field: url"))
		return
	}
	spreadsheetID, err := sheets.ExtractSpreadsheetID(req.URL)
	if err != nil {
		slog.Warn("Server.loadRecipesHandler: invalid sheet URL", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	recipes, err := s.loader.Load(r.Context(), req.URL)
	if err != nil {
		slog.Error("Server.loadRecipesHandler: failed to load document", "error", err)
		writeJSONResponse(w, http.StatusBadGateway, models.Error("Failed to load document: "+err.Error()))
		return
	}
	if len(recipes) == 0 {
		writeJSONResponse(w, http.StatusUnprocessableEntity, models.Error("Document contains no recipe steps"))
		return
	}

	nowMillis := s.now().UnixMilli()
	saved := make([]models.SavedRecipe, 0, len(recipes))
	for _, rec := range recipes {
		sr := models.SavedRecipe{
			DocumentURL:        req.URL,
			FileName:           fmt.Sprintf("%s-%s.csv", spreadsheetID, rec.ID),
			TabName:            rec.ID,
			DownloadedAtMillis: nowMillis,
			LastUpdatedMillis:  nowMillis,
			Recipe:             rec,
		}
		id, err := s.st.AddSavedRecipe(sr)
		if err != nil {
			slog.Error("Server.loadRecipesHandler: failed to save recipe", "tab", rec.ID, "error", err)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save recipe"))
			return
		}
		sr.ID = id
		saved = append(saved, sr)
	}

	slog.Info("Server.loadRecipesHandler: recipes loaded", "count", len(saved), "document", spreadsheetID)
	writeJSONResponse(w, http.StatusCreated, models.SuccessWithMessage("Recipes loaded successfully", saved))
}

// recipesHandler handles GET /recipes.
func (s *Server) recipesHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.recipesHandler: processing recipes request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		slog.Warn("Server.recipesHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	recipes, err := s.st.ListSavedRecipes()
	if err != nil {
		slog.Error("Server.recipesHandler: failed to list recipes", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch recipes"))
		return
	}
	slog.Debug("Server.recipesHandler: recipes fetched", "count", len(recipes))
	writeJSONResponse(w, http.StatusOK, models.Success(recipes))
}

// recipeByIDHandler handles GET and DELETE /recipes/{id}.
func (s *Server) recipeByIDHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.recipeByIDHandler: processing request", "method", r.Method, "path", r.URL.Path)

	idStr := strings.TrimPrefix(r.URL.Path, "/recipes/")
	if idStr == "" || strings.Contains(idStr, "/") {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Unknown recipe endpoint"))
		return
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid recipe id"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		sr, err := s.st.GetSavedRecipe(id)
		if err != nil {
			slog.Error("Server.recipeByIDHandler: failed to fetch recipe", "id", id, "error", err)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch recipe"))
			return
		}
		if sr == nil {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Recipe not found"))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Success(sr))
	case http.MethodDelete:
		if err := s.st.DeleteSavedRecipe(id); err != nil {
			slog.Error("Server.recipeByIDHandler: failed to delete recipe", "id", id, "error", err)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to delete recipe"))
			return
		}
		slog.Info("Server.recipeByIDHandler: recipe deleted", "id", id)
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Recipe deleted successfully", nil))
	default:
		w.Header().Set("Allow", "GET, DELETE")
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
	}
}
