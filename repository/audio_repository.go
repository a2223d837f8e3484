package repository

import (
	"database/sql"
	"fmt"
	"time"

	"audiohub/db"
	"audiohub/model"
)

// AudioFileRepository defines the interface for audio file data operations.
// Listing operations that serve the API return active records only, newest
// upload first; GetAudioFileByID returns a record in any state.
type AudioFileRepository interface {
	CreateAudioFile(f *model.AudioFile) (int64, error)
	GetAudioFileByID(id int64) (*model.AudioFile, error)
	GetActiveAudioFiles(userID int64) ([]*model.AudioFile, error)
	GetAudioFilesByUserID(userID int64) ([]*model.AudioFile, error)
	UpdateAudioFile(f *model.AudioFile) error
	SetAudioFileActive(id int64, active bool) error
	DeleteAudioFile(id int64) error
	CountAudioFiles() (model.AudioFileCounts, error)
	GetInactiveAudioFiles() ([]*model.AudioFile, error)
	ReactivateAllAudioFiles() (int64, error)
}

// mysqlAudioFileRepository implements AudioFileRepository for MySQL.
type mysqlAudioFileRepository struct {
	db *sql.DB
}

// NewMySQLAudioFileRepository creates a new mysqlAudioFileRepository.
func NewMySQLAudioFileRepository() AudioFileRepository {
	return &mysqlAudioFileRepository{db: db.DB}
}

const audioFileColumns = `id, user_id, title, description, file_path, duration, file_size, is_active, uploaded_at, updated_at`

func scanAudioFile(row interface{ Scan(...interface{}) error }) (*model.AudioFile, error) {
	f := &model.AudioFile{}
	err := row.Scan(&f.ID, &f.UserID, &f.Title, &f.Description, &f.FilePath,
		&f.Duration, &f.FileSize, &f.IsActive, &f.UploadedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// CreateAudioFile adds a new audio file record. FileSize must already hold
// the byte count of the stored binary; the repository never recomputes it
// from caller-supplied fields.
func (r *mysqlAudioFileRepository) CreateAudioFile(f *model.AudioFile) (int64, error) {
	query := `INSERT INTO audio_files (user_id, title, description, file_path, duration, file_size, is_active, uploaded_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	stmt, err := r.db.Prepare(query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement for CreateAudioFile: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	res, err := stmt.Exec(f.UserID, f.Title, f.Description, f.FilePath, f.Duration, f.FileSize, true, now, now)
	if err != nil {
		return 0, fmt.Errorf("failed to execute CreateAudioFile: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for CreateAudioFile: %w", err)
	}
	f.ID = id
	f.IsActive = true
	f.UploadedAt = now
	f.UpdatedAt = now
	return id, nil
}

// GetAudioFileByID retrieves an audio file by its ID regardless of its
// active flag. Soft-deleted records are still reachable here so callers can
// observe is_active=false.
func (r *mysqlAudioFileRepository) GetAudioFileByID(id int64) (*model.AudioFile, error) {
	query := `SELECT ` + audioFileColumns + ` FROM audio_files WHERE id = ?`
	f, err := scanAudioFile(r.db.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan audio file by ID %d: %w", id, err)
	}
	return f, nil
}

func (r *mysqlAudioFileRepository) queryAudioFiles(query string, args ...interface{}) ([]*model.AudioFile, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audio files: %w", err)
	}
	defer rows.Close()

	files := make([]*model.AudioFile, 0)
	for rows.Next() {
		f, err := scanAudioFile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audio file row: %w", err)
		}
		files = append(files, f)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during audio file rows iteration: %w", err)
	}

	return files, nil
}

// GetActiveAudioFiles retrieves active audio files, newest upload first.
// A zero userID returns active files across all users.
func (r *mysqlAudioFileRepository) GetActiveAudioFiles(userID int64) ([]*model.AudioFile, error) {
	if userID > 0 {
		query := `SELECT ` + audioFileColumns + ` FROM audio_files WHERE is_active = TRUE AND user_id = ? ORDER BY uploaded_at DESC, id DESC`
		return r.queryAudioFiles(query, userID)
	}
	query := `SELECT ` + audioFileColumns + ` FROM audio_files WHERE is_active = TRUE ORDER BY uploaded_at DESC, id DESC`
	return r.queryAudioFiles(query)
}

// GetAudioFilesByUserID retrieves all of a user's audio files including
// inactive ones. Used by the cascade deletion path.
func (r *mysqlAudioFileRepository) GetAudioFilesByUserID(userID int64) ([]*model.AudioFile, error) {
	query := `SELECT ` + audioFileColumns + ` FROM audio_files WHERE user_id = ? ORDER BY uploaded_at DESC, id DESC`
	return r.queryAudioFiles(query, userID)
}

// UpdateAudioFile persists mutable fields of an audio file. The owning
// user_id column is deliberately absent from the statement: ownership is
// immutable after creation.
func (r *mysqlAudioFileRepository) UpdateAudioFile(f *model.AudioFile) error {
	query := `UPDATE audio_files SET title = ?, description = ?, file_path = ?, duration = ?, file_size = ?, updated_at = ? WHERE id = ?`
	stmt, err := r.db.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for UpdateAudioFile: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	res, err := stmt.Exec(f.Title, f.Description, f.FilePath, f.Duration, f.FileSize, now, f.ID)
	if err != nil {
		return fmt.Errorf("failed to execute UpdateAudioFile for ID %d: %w", f.ID, err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		// The row may exist with identical values; confirm before reporting.
		if _, err := r.GetAudioFileByID(f.ID); err != nil {
			return err
		}
	}
	f.UpdatedAt = now
	return nil
}

// SetAudioFileActive flips the lifecycle flag for a record.
func (r *mysqlAudioFileRepository) SetAudioFileActive(id int64, active bool) error {
	query := `UPDATE audio_files SET is_active = ?, updated_at = ? WHERE id = ?`
	stmt, err := r.db.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for SetAudioFileActive: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.Exec(active, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to execute SetAudioFileActive for ID %d: %w", id, err)
	}
	return nil
}

// DeleteAudioFile removes a record permanently.
func (r *mysqlAudioFileRepository) DeleteAudioFile(id int64) error {
	query := `DELETE FROM audio_files WHERE id = ?`
	res, err := r.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to execute DeleteAudioFile for ID %d: %w", id, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected for DeleteAudioFile: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// CountAudioFiles reports record totals by lifecycle state.
func (r *mysqlAudioFileRepository) CountAudioFiles() (model.AudioFileCounts, error) {
	var counts model.AudioFileCounts
	query := `SELECT COUNT(*), COALESCE(SUM(is_active = TRUE), 0), COALESCE(SUM(is_active = FALSE), 0) FROM audio_files`
	err := r.db.QueryRow(query).Scan(&counts.Total, &counts.Active, &counts.Inactive)
	if err != nil {
		return counts, fmt.Errorf("failed to count audio files: %w", err)
	}
	return counts, nil
}

// GetInactiveAudioFiles retrieves soft-deleted records for the admin tooling.
func (r *mysqlAudioFileRepository) GetInactiveAudioFiles() ([]*model.AudioFile, error) {
	query := `SELECT ` + audioFileColumns + ` FROM audio_files WHERE is_active = FALSE ORDER BY uploaded_at DESC, id DESC`
	return r.queryAudioFiles(query)
}

// ReactivateAllAudioFiles flips every inactive record back to active and
// reports how many were affected. Operational recovery path only.
func (r *mysqlAudioFileRepository) ReactivateAllAudioFiles() (int64, error) {
	query := `UPDATE audio_files SET is_active = TRUE, updated_at = ? WHERE is_active = FALSE`
	res, err := r.db.Exec(query, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to execute ReactivateAllAudioFiles: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected for ReactivateAllAudioFiles: %w", err)
	}
	return rows, nil
}
