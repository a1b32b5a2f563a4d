package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"guidehub/internal/util"
	"guidehub/pkg/domain"
)

// CourseInput carries course fields for create/update.
type CourseInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Thumbnail   string `json:"thumbnail"`
	IsPaid      bool   `json:"isPaid"`
	Price       int64  `json:"price"`
}

// LessonInput carries lesson fields for create/update.
type LessonInput struct {
	CourseID    string `json:"courseId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Duration    int    `json:"duration"`
	IsPremium   bool   `json:"isPremium"`
	VideoKey    string `json:"videoKey"`
	NotesKey    string `json:"notesKey"`
}

// LessonContent holds time-limited URLs for a lesson's media.
type LessonContent struct {
	LessonID  string `json:"lessonId"`
	VideoURL  string `json:"videoUrl,omitempty"`
	NotesURL  string `json:"notesUrl,omitempty"`
	ExpiresIn int64  `json:"expiresIn"`
}

// ListCourses returns course metadata without lessons.
func (a *App) ListCourses() ([]domain.Course, error) {
	return a.store.ListCourses()
}

// GetCourse returns a course with its lessons.
func (a *App) GetCourse(id string) (domain.Course, error) {
	course, ok, err := a.store.GetCourse(id)
	if err != nil {
		return domain.Course{}, fmt.Errorf("fetch course: %w", err)
	}
	if !ok {
		return domain.Course{}, ErrCourseNotFound
	}
	lessons, err := a.store.ListLessonsByCourse(course.ID)
	if err != nil {
		return domain.Course{}, fmt.Errorf("fetch lessons: %w", err)
	}
	course.Lessons = lessons
	return course, nil
}

// CreateCourse adds a course.
func (a *App) CreateCourse(in CourseInput) (domain.Course, error) {
	if strings.TrimSpace(in.Title) == "" || in.Price < 0 {
		return domain.Course{}, ErrValidation
	}
	now := time.Now().UTC()
	course := domain.Course{
		ID:          util.NewID(),
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Thumbnail:   strings.TrimSpace(in.Thumbnail),
		IsPaid:      in.IsPaid,
		Price:       in.Price,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := a.store.SaveCourse(course); err != nil {
		return domain.Course{}, fmt.Errorf("save course: %w", err)
	}
	return course, nil
}

// UpdateCourse replaces editable course fields.
func (a *App) UpdateCourse(id string, in CourseInput) (domain.Course, error) {
	course, ok, err := a.store.GetCourse(id)
	if err != nil {
		return domain.Course{}, fmt.Errorf("fetch course: %w", err)
	}
	if !ok {
		return domain.Course{}, ErrCourseNotFound
	}
	if strings.TrimSpace(in.Title) == "" || in.Price < 0 {
		return domain.Course{}, ErrValidation
	}
	course.Title = strings.TrimSpace(in.Title)
	course.Description = in.Description
	course.Thumbnail = strings.TrimSpace(in.Thumbnail)
	course.IsPaid = in.IsPaid
	course.Price = in.Price
	course.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveCourse(course); err != nil {
		return domain.Course{}, fmt.Errorf("save course: %w", err)
	}
	return course, nil
}

// DeleteCourse removes a course and its lessons.
func (a *App) DeleteCourse(id string) error {
	_, ok, err := a.store.GetCourse(id)
	if err != nil {
		return fmt.Errorf("fetch course: %w", err)
	}
	if !ok {
		return ErrCourseNotFound
	}
	return a.store.DeleteCourse(id)
}

// CreateLesson attaches a lesson to a course.
func (a *App) CreateLesson(in LessonInput) (domain.Lesson, error) {
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.CourseID) == "" {
		return domain.Lesson{}, ErrValidation
	}
	_, ok, err := a.store.GetCourse(in.CourseID)
	if err != nil {
		return domain.Lesson{}, fmt.Errorf("fetch course: %w", err)
	}
	if !ok {
		return domain.Lesson{}, ErrCourseNotFound
	}
	now := time.Now().UTC()
	lesson := domain.Lesson{
		ID:          util.NewID(),
		CourseID:    in.CourseID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Duration:    in.Duration,
		IsPremium:   in.IsPremium,
		VideoKey:    strings.TrimSpace(in.VideoKey),
		NotesKey:    strings.TrimSpace(in.NotesKey),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := a.store.SaveLesson(lesson); err != nil {
		return domain.Lesson{}, fmt.Errorf("save lesson: %w", err)
	}
	return lesson, nil
}

// UpdateLesson replaces editable lesson fields.
func (a *App) UpdateLesson(id string, in LessonInput) (domain.Lesson, error) {
	lesson, ok, err := a.store.GetLesson(id)
	if err != nil {
		return domain.Lesson{}, fmt.Errorf("fetch lesson: %w", err)
	}
	if !ok {
		return domain.Lesson{}, ErrLessonNotFound
	}
	if strings.TrimSpace(in.Title) == "" {
		return domain.Lesson{}, ErrValidation
	}
	lesson.Title = strings.TrimSpace(in.Title)
	lesson.Description = in.Description
	lesson.Duration = in.Duration
	lesson.IsPremium = in.IsPremium
	if key := strings.TrimSpace(in.VideoKey); key != "" {
		lesson.VideoKey = key
	}
	if key := strings.TrimSpace(in.NotesKey); key != "" {
		lesson.NotesKey = key
	}
	lesson.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveLesson(lesson); err != nil {
		return domain.Lesson{}, fmt.Errorf("save lesson: %w", err)
	}
	return lesson, nil
}

// GetLesson returns lesson metadata.
func (a *App) GetLesson(id string) (domain.Lesson, error) {
	lesson, ok, err := a.store.GetLesson(id)
	if err != nil {
		return domain.Lesson{}, fmt.Errorf("fetch lesson: %w", err)
	}
	if !ok {
		return domain.Lesson{}, ErrLessonNotFound
	}
	return lesson, nil
}

// GetLessonContent issues presigned URLs for a lesson's media. Premium
// lessons require a premium account or the admin role.
func (a *App) GetLessonContent(ctx context.Context, user domain.User, lessonID string) (LessonContent, error) {
	lesson, ok, err := a.store.GetLesson(lessonID)
	if err != nil {
		return LessonContent{}, fmt.Errorf("fetch lesson: %w", err)
	}
	if !ok {
		return LessonContent{}, ErrLessonNotFound
	}
	if lesson.IsPremium && !user.IsPremium && user.Role != domain.RoleAdmin {
		return LessonContent{}, ErrPremiumRequired
	}
	if lesson.VideoKey == "" && lesson.NotesKey == "" {
		return LessonContent{}, ErrLessonContentMissing
	}

	content := LessonContent{
		LessonID:  lesson.ID,
		ExpiresIn: int64(a.presignTTL.Seconds()),
	}
	if lesson.VideoKey != "" {
		url, err := a.objects.PresignGet(ctx, lesson.VideoKey, a.presignTTL)
		if err != nil {
			return LessonContent{}, fmt.Errorf("%w: %v", ErrPresignFailed, err)
		}
		content.VideoURL = url
	}
	if lesson.NotesKey != "" {
		url, err := a.objects.PresignGet(ctx, lesson.NotesKey, a.presignTTL)
		if err != nil {
			return LessonContent{}, fmt.Errorf("%w: %v", ErrPresignFailed, err)
		}
		content.NotesURL = url
	}
	return content, nil
}
