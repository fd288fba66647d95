package gradingRepository

import (
	"KneeGrader/internal/api/grading"
	"KneeGrader/internal/entity"
	contextPkg "KneeGrader/pkg/context"
	"context"
	"database/sql"
	"errors"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

func (r *analysisRepository) CreateAnalysis(c context.Context, analysis entity.Analysis) error {
	requestID := contextPkg.GetRequestID(c)

	query, args, err := sqlx.Named(queryCreateAnalysis, analysis)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to build SQL query for CreateAnalysis")
		return err
	}
	query = r.q.Rebind(query)

	if _, err := r.q.ExecContext(c, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id":  requestID,
			"analysis_id": analysis.ID,
			"error":       err.Error(),
		}).Error("Database error when creating analysis")
		return err
	}

	return nil
}

func (r *analysisRepository) GetAnalysisByID(c context.Context, id string) (entity.Analysis, error) {
	requestID := contextPkg.GetRequestID(c)
	var analysis entity.Analysis

	query, args, err := sqlx.Named(queryGetAnalysisByID, map[string]interface{}{
		"id": id,
	})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetAnalysisByID named query preparation err")
		return entity.Analysis{}, err
	}
	query = r.q.Rebind(query)

	if err := r.q.GetContext(c, &analysis, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.Analysis{}, grading.ErrAnalysisNotFound
		}
		r.log.WithFields(logrus.Fields{
			"request_id":  requestID,
			"analysis_id": id,
			"error":       err.Error(),
		}).Error("Database error when getting analysis")
		return entity.Analysis{}, err
	}

	return analysis, nil
}

func (r *analysisRepository) ListRecentAnalyses(c context.Context, limit int) ([]entity.Analysis, error) {
	requestID := contextPkg.GetRequestID(c)
	analyses := make([]entity.Analysis, 0, limit)

	query, args, err := sqlx.Named(queryListRecentAnalyses, map[string]interface{}{
		"limit": limit,
	})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("ListRecentAnalyses named query preparation err")
		return nil, err
	}
	query = r.q.Rebind(query)

	if err := r.q.SelectContext(c, &analyses, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when listing analyses")
		return nil, err
	}

	return analyses, nil
}
