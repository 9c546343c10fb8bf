package user

import (
	"context"
	"io"
	"net/mail"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/notex/core"
	"github.com/trezcool/notex/core/course"
)

var NowFunc = time.Now // mockable

type (
	ServiceInterface interface {
		CreateProfile(ctx context.Context, uid, name, email string) (User, error)
		EnsureProfile(ctx context.Context) (User, error)
		Get(ctx context.Context) (User, error)
		AddCourseToMyCourses(ctx context.Context, courseID string) error
		ListMyCourses(ctx context.Context) ([]string, error)
		SavePrivateNotes(ctx context.Context, userID, notes string) error
		UploadPrivateFile(ctx context.Context, filename string, content io.Reader) (PrivateFile, error)
		ListPrivateFiles(ctx context.Context) ([]PrivateFile, error)
	}

	// CourseGetter finds valid courses.
	CourseGetter interface {
		Get(ctx context.Context, id string) (course.Course, error)
	}

	Service struct {
		store    core.DocumentStore
		objects  core.ObjectStore
		accounts core.AccountService
		courses  CourseGetter
		mailSvc  core.EmailService
		logger   core.Logger
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(
	store core.DocumentStore,
	objects core.ObjectStore,
	accounts core.AccountService,
	courses CourseGetter,
	mailSvc core.EmailService,
	logger core.Logger,
) *Service {
	return &Service{
		store:    store,
		objects:  objects,
		accounts: accounts,
		courses:  courses,
		mailSvc:  mailSvc,
		logger:   logger,
	}
}

// CreateProfile writes the profile of a freshly signed up account and welcomes them.
func (svc *Service) CreateProfile(ctx context.Context, uid, name, email string) (User, error) {
	uid = core.CleanString(uid)
	if uid == "" {
		return User{}, core.NewFieldError("id", "this field is required")
	}
	usr := User{
		ID:              uid,
		Name:            withDefault(name, DefaultName),
		Email:           withDefault(core.CleanString(email, true /* lower */), DefaultEmail),
		EnrolledCourses: []string{},
		CreatedAt:       NowFunc().UTC(),
	}
	fields := core.Fields{
		"name":            usr.Name,
		"email":           usr.Email,
		"enrolledCourses": usr.EnrolledCourses,
	}
	if err := svc.store.SetDocument(ctx, core.UsersCollection, uid, fields, false); err != nil {
		return User{}, errors.Wrap(err, "creating profile")
	}
	svc.sendWelcomeMail(usr)
	return usr, nil
}

// EnsureProfile returns the profile of the current user, creating it with defaults when missing
// and back-filling a blank name or email.
func (svc *Service) EnsureProfile(ctx context.Context) (User, error) {
	uid, err := core.RequirePrincipal(ctx, svc.accounts)
	if err != nil {
		return User{}, err
	}

	doc, err := svc.store.GetDocument(ctx, core.UsersCollection, uid)
	if errors.Is(err, core.ErrNotFound) {
		usr := User{
			ID:              uid,
			Name:            DefaultName,
			Email:           DefaultEmail,
			EnrolledCourses: []string{},
			CreatedAt:       NowFunc().UTC(),
		}
		fields := core.Fields{
			"name":            usr.Name,
			"email":           usr.Email,
			"enrolledCourses": usr.EnrolledCourses,
		}
		// merge: a concurrent sign-up may have written the profile in the meantime
		if err = svc.store.SetDocument(ctx, core.UsersCollection, uid, fields, true); err != nil {
			return User{}, errors.Wrap(err, "creating default profile")
		}
		return svc.get(ctx, uid)
	}
	if err != nil {
		return User{}, errors.Wrap(err, "getting profile")
	}

	usr, err := decodeUser(doc)
	if err != nil {
		return User{}, err
	}
	fields := make(core.Fields)
	if core.CleanString(usr.Name) == "" {
		usr.Name = DefaultName
		fields["name"] = usr.Name
	}
	if core.CleanString(usr.Email) == "" {
		usr.Email = DefaultEmail
		fields["email"] = usr.Email
	}
	if len(fields) > 0 {
		if err = svc.store.UpdateDocument(ctx, core.UsersCollection, uid, fields); err != nil {
			return User{}, errors.Wrap(err, "completing profile")
		}
	}
	return usr, nil
}

func (svc *Service) Get(ctx context.Context) (User, error) {
	uid, err := core.RequirePrincipal(ctx, svc.accounts)
	if err != nil {
		return User{}, err
	}
	return svc.get(ctx, uid)
}

func (svc *Service) get(ctx context.Context, uid string) (User, error) {
	doc, err := svc.store.GetDocument(ctx, core.UsersCollection, uid)
	if err != nil {
		return User{}, errors.Wrap(err, "getting profile")
	}
	return decodeUser(doc)
}

// AddCourseToMyCourses enrolls the current user in a course. Enrolling twice is a no-op.
func (svc *Service) AddCourseToMyCourses(ctx context.Context, courseID string) error {
	uid, err := core.RequirePrincipal(ctx, svc.accounts)
	if err != nil {
		return err
	}
	crs, err := svc.courses.Get(ctx, courseID)
	if err != nil {
		return errors.Wrap(err, "finding course")
	}
	if err = svc.store.AddToSet(ctx, core.UsersCollection, uid, "enrolledCourses", crs.ID); err != nil {
		return errors.Wrap(err, "enrolling in course")
	}
	return nil
}

func (svc *Service) ListMyCourses(ctx context.Context) ([]string, error) {
	usr, err := svc.Get(ctx)
	if err != nil {
		return nil, err
	}
	return usr.EnrolledCourses, nil
}

// SavePrivateNotes overwrites the notes of userID, who must be the current user.
func (svc *Service) SavePrivateNotes(ctx context.Context, userID, notes string) error {
	uid, err := core.RequirePrincipal(ctx, svc.accounts)
	if err != nil {
		return err
	}
	if core.CleanString(userID) != uid {
		return core.ErrPermissionDenied
	}
	if err = svc.store.UpdateDocument(ctx, core.UsersCollection, uid, core.Fields{"privateNotes": notes}); err != nil {
		return errors.Wrap(err, "saving private notes")
	}
	return nil
}

// UploadPrivateFile stores content under privateFiles/{uid}/{filename}, visible to its owner only.
func (svc *Service) UploadPrivateFile(ctx context.Context, filename string, content io.Reader) (PrivateFile, error) {
	uid, err := core.RequirePrincipal(ctx, svc.accounts)
	if err != nil {
		return PrivateFile{}, err
	}
	filename = core.CleanFilename(filename)
	if filename == "" {
		return PrivateFile{}, core.NewFieldError("file", "a file with a name is required")
	}

	ref, err := svc.objects.Put(ctx, core.PrivateObjectPath(uid, filename), content)
	if err != nil {
		return PrivateFile{}, errors.Wrap(err, "storing private file")
	}
	url, err := svc.objects.URL(ref)
	if err != nil {
		return PrivateFile{}, errors.Wrap(err, "getting private file url")
	}

	pf := PrivateFile{
		ID:         uuid.New().String(),
		OwnerID:    uid,
		FileURL:    url,
		Filename:   filename,
		UploadedAt: NowFunc().UTC(),
	}
	fields := core.Fields{
		"fileUrl":    pf.FileURL,
		"filename":   pf.Filename,
		"uploadedAt": pf.UploadedAt.Format(time.RFC3339Nano),
	}
	if err = svc.store.SetDocument(ctx, core.PrivateFilesCollection(uid), pf.ID, fields, false); err != nil {
		return PrivateFile{}, errors.Wrap(err, "saving private file")
	}
	return pf, nil
}

// ListPrivateFiles returns the current user's private files, oldest first.
func (svc *Service) ListPrivateFiles(ctx context.Context) ([]PrivateFile, error) {
	uid, err := core.RequirePrincipal(ctx, svc.accounts)
	if err != nil {
		return nil, err
	}
	docs, err := svc.store.ListDocuments(ctx, core.PrivateFilesCollection(uid))
	if err != nil {
		return nil, errors.Wrap(err, "listing private files")
	}
	files := make([]PrivateFile, 0, len(docs))
	for _, doc := range docs {
		pf, err := decodePrivateFile(uid, doc)
		if err != nil {
			svc.logger.Warn("skipping malformed private file", err)
			continue
		}
		files = append(files, pf)
	}
	sort.SliceStable(files, func(i, j int) bool { return files[i].UploadedAt.Before(files[j].UploadedAt) })
	return files, nil
}

func (svc *Service) sendWelcomeMail(usr User) {
	if usr.Email == DefaultEmail {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{usr.Address()},
		Subject:      "Welcome!",
		TemplateName: "welcome",
		TemplateData: usr,
	})
}

func withDefault(s, def string) string {
	if s = core.CleanString(s); s == "" {
		return def
	}
	return s
}
