package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"MeetScope/db"
	"MeetScope/model"
)

// ErrAlreadyTerminal is returned when a lifecycle transition is attempted on
// a meeting that already reached completed or failed.
var ErrAlreadyTerminal = errors.New("meeting already in terminal state")

// MeetingRepository defines the interface for meeting data operations.
// Lookup operations report absence with a nil meeting and a nil error;
// callers must check before assuming success.
type MeetingRepository interface {
	Create(meeting *model.Meeting) (int64, error)
	GetByID(id int64) (*model.Meeting, error)
	// ListAll returns every meeting ordered by createdAt descending,
	// ties broken by id descending.
	ListAll() ([]*model.Meeting, error)
	Update(id int64, update *model.MeetingUpdate) (*model.Meeting, error)
	Delete(id int64) (bool, error)
	// Complete persists transcript, summary and the three insight lists in a
	// single transition from processing to completed.
	Complete(id int64, transcript string, duration float32, analysis *model.MeetingAnalysis) (*model.Meeting, error)
	// Fail moves a processing meeting to failed, recording a diagnostic note.
	Fail(id int64, note string) (*model.Meeting, error)
}

// mysqlMeetingRepository implements MeetingRepository for MySQL.
type mysqlMeetingRepository struct {
	DB *sql.DB
}

// NewMySQLMeetingRepository creates a new instance of mysqlMeetingRepository.
func NewMySQLMeetingRepository() MeetingRepository {
	return &mysqlMeetingRepository{DB: db.DB}
}

func marshalList(list []string) string {
	if list == nil {
		list = []string{}
	}
	b, _ := json.Marshal(list)
	return string(b)
}

func unmarshalList(raw sql.NullString) []string {
	if !raw.Valid || raw.String == "" {
		return []string{}
	}
	var list []string
	if err := json.Unmarshal([]byte(raw.String), &list); err != nil {
		return []string{}
	}
	return list
}

// Create adds a new meeting to the database.
func (r *mysqlMeetingRepository) Create(meeting *model.Meeting) (int64, error) {
	query := `INSERT INTO meetings (title, participants, audio_object, status, duration, transcript, summary, key_outcomes, pain_points, objections, error_note, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	stmt, err := r.DB.Prepare(query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement for Create: %w", err)
	}
	defer stmt.Close()

	status := meeting.Status
	if status == "" {
		status = model.StatusProcessing
	}

	now := time.Now()
	res, err := stmt.Exec(meeting.Title, meeting.Participants, meeting.AudioObject, status, meeting.Duration,
		meeting.Transcript, meeting.Summary, marshalList(meeting.KeyOutcomes), marshalList(meeting.PainPoints),
		marshalList(meeting.Objections), meeting.ErrorNote, now, now)
	if err != nil {
		return 0, fmt.Errorf("failed to execute Create: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for Create: %w", err)
	}

	meeting.ID = id
	meeting.Status = status
	meeting.CreatedAt = now
	meeting.UpdatedAt = now
	return id, nil
}

const meetingColumns = `id, title, participants, audio_object, status, duration, transcript, summary, key_outcomes, pain_points, objections, error_note, created_at, updated_at`

func scanMeeting(scanner interface{ Scan(dest ...interface{}) error }) (*model.Meeting, error) {
	m := &model.Meeting{}
	var participants, transcript, summary, keyOutcomes, painPoints, objections, errorNote sql.NullString
	err := scanner.Scan(&m.ID, &m.Title, &participants, &m.AudioObject, &m.Status, &m.Duration,
		&transcript, &summary, &keyOutcomes, &painPoints, &objections, &errorNote, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.Participants = participants.String
	m.Transcript = transcript.String
	m.Summary = summary.String
	m.KeyOutcomes = unmarshalList(keyOutcomes)
	m.PainPoints = unmarshalList(painPoints)
	m.Objections = unmarshalList(objections)
	m.ErrorNote = errorNote.String
	return m, nil
}

// GetByID retrieves a meeting by its ID.
func (r *mysqlMeetingRepository) GetByID(id int64) (*model.Meeting, error) {
	row := r.DB.QueryRow(`SELECT `+meetingColumns+` FROM meetings WHERE id = ?`, id)
	m, err := scanMeeting(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Meeting not found
		}
		return nil, fmt.Errorf("failed to scan meeting by ID %d: %w", id, err)
	}
	return m, nil
}

// ListAll retrieves all meetings, newest first.
func (r *mysqlMeetingRepository) ListAll() ([]*model.Meeting, error) {
	rows, err := r.DB.Query(`SELECT ` + meetingColumns + ` FROM meetings ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query meetings: %w", err)
	}
	defer rows.Close()

	meetings := make([]*model.Meeting, 0)
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan meeting in ListAll: %w", err)
		}
		meetings = append(meetings, m)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration in ListAll: %w", err)
	}

	return meetings, nil
}

// Update merges the non-nil fields of update onto the stored meeting and
// refreshes updated_at. Returns (nil, nil) when the id does not exist.
func (r *mysqlMeetingRepository) Update(id int64, update *model.MeetingUpdate) (*model.Meeting, error) {
	sets := make([]string, 0, 8)
	args := make([]interface{}, 0, 9)

	if update.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *update.Title)
	}
	if update.Participants != nil {
		sets = append(sets, "participants = ?")
		args = append(args, *update.Participants)
	}
	if update.Duration != nil {
		sets = append(sets, "duration = ?")
		args = append(args, *update.Duration)
	}
	if update.Transcript != nil {
		sets = append(sets, "transcript = ?")
		args = append(args, *update.Transcript)
	}
	if update.Summary != nil {
		sets = append(sets, "summary = ?")
		args = append(args, *update.Summary)
	}
	if update.KeyOutcomes != nil {
		sets = append(sets, "key_outcomes = ?")
		args = append(args, marshalList(*update.KeyOutcomes))
	}
	if update.PainPoints != nil {
		sets = append(sets, "pain_points = ?")
		args = append(args, marshalList(*update.PainPoints))
	}
	if update.Objections != nil {
		sets = append(sets, "objections = ?")
		args = append(args, marshalList(*update.Objections))
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now(), id)

	query := `UPDATE meetings SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	if _, err := r.DB.Exec(query, args...); err != nil {
		return nil, fmt.Errorf("failed to execute Update for meeting ID %d: %w", id, err)
	}

	// RowsAffected cannot distinguish a missing row from a value-identical
	// merge, so absence is reported by the lookup instead.
	return r.GetByID(id)
}

// Delete removes a meeting; the boolean reports whether a record existed.
func (r *mysqlMeetingRepository) Delete(id int64) (bool, error) {
	res, err := r.DB.Exec(`DELETE FROM meetings WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to execute Delete for meeting ID %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows for Delete: %w", err)
	}
	return affected > 0, nil
}

// Complete transitions a processing meeting to completed, persisting the
// transcript and analysis together. The WHERE clause guards the one-way
// lifecycle: a terminal record is never mutated again.
func (r *mysqlMeetingRepository) Complete(id int64, transcript string, duration float32, analysis *model.MeetingAnalysis) (*model.Meeting, error) {
	query := `UPDATE meetings SET status = ?, transcript = ?, duration = ?, summary = ?, key_outcomes = ?, pain_points = ?, objections = ?, updated_at = ?
	           WHERE id = ? AND status = ?`
	res, err := r.DB.Exec(query, model.StatusCompleted, transcript, duration, analysis.Summary,
		marshalList(analysis.KeyOutcomes), marshalList(analysis.PainPoints), marshalList(analysis.Objections),
		time.Now(), id, model.StatusProcessing)
	if err != nil {
		return nil, fmt.Errorf("failed to execute Complete for meeting ID %d: %w", id, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		existing, err := r.GetByID(id)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, nil
		}
		return nil, ErrAlreadyTerminal
	}
	return r.GetByID(id)
}

// Fail transitions a processing meeting to failed with a diagnostic note.
func (r *mysqlMeetingRepository) Fail(id int64, note string) (*model.Meeting, error) {
	query := `UPDATE meetings SET status = ?, error_note = ?, updated_at = ? WHERE id = ? AND status = ?`
	res, err := r.DB.Exec(query, model.StatusFailed, note, time.Now(), id, model.StatusProcessing)
	if err != nil {
		return nil, fmt.Errorf("failed to execute Fail for meeting ID %d: %w", id, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		existing, err := r.GetByID(id)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, nil
		}
		return nil, ErrAlreadyTerminal
	}
	return r.GetByID(id)
}
