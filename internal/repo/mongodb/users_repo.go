package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/careerhub/internal/domain/user"
	"github.com/geocoder89/careerhub/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const UsersCollection = "users"

// Field names follow the documents already stored in the users collection.
const (
	fieldPassword     = "password"
	fieldSkills       = "Skills"
	fieldInterests    = "Interests"
	fieldExperience   = "Experience"
	fieldLanguages    = "Languages"
	fieldResume       = "Resume"
	fieldResetToken   = "resetPasswordToken"
	fieldResetExpires = "resetPasswordExpires"
	fieldLastLogin    = "lastLogin"
	fieldLastLogout   = "lastLogout"
	fieldUpdatedAt    = "updatedAt"
)

type userDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Name         string             `bson:"name"`
	Email        string             `bson:"email"`
	PasswordHash string             `bson:"password"`
	Phone        string             `bson:"phone"`
	Age          int                `bson:"age"`

	Country    string           `bson:"country,omitempty"`
	Education  []user.Education `bson:"education"`
	Skills     []user.Skill     `bson:"Skills"`
	Interests  []string         `bson:"Interests"`
	Experience []string         `bson:"Experience"`
	Languages  []string         `bson:"Languages"`
	Resume     string           `bson:"Resume,omitempty"`

	Role string `bson:"role"`

	ResetPasswordToken   *string    `bson:"resetPasswordToken,omitempty"`
	ResetPasswordExpires *time.Time `bson:"resetPasswordExpires,omitempty"`

	LastLogin  time.Time  `bson:"lastLogin"`
	LastLogout *time.Time `bson:"lastLogout,omitempty"`
	CreatedAt  time.Time  `bson:"createdAt"`
	UpdatedAt  time.Time  `bson:"updatedAt"`
}

func toDoc(u user.User) userDoc {
	return userDoc{
		Name:                 u.Name,
		Email:                u.Email,
		PasswordHash:         u.PasswordHash,
		Phone:                u.Phone,
		Age:                  u.Age,
		Country:              u.Country,
		Education:            u.Education,
		Skills:               u.Skills,
		Interests:            u.Interests,
		Experience:           u.Experience,
		Languages:            u.Languages,
		Resume:               u.Resume,
		Role:                 string(u.Role),
		ResetPasswordToken:   u.ResetTokenHash,
		ResetPasswordExpires: u.ResetTokenExpiresAt,
		LastLogin:            u.LastLogin,
		LastLogout:           u.LastLogout,
		CreatedAt:            u.CreatedAt,
		UpdatedAt:            u.UpdatedAt,
	}
}

func (d userDoc) toUser() user.User {
	u := user.User{
		ID:                  d.ID.Hex(),
		Name:                d.Name,
		Email:               d.Email,
		PasswordHash:        d.PasswordHash,
		Phone:               d.Phone,
		Age:                 d.Age,
		Country:             d.Country,
		Education:           d.Education,
		Skills:              d.Skills,
		Interests:           d.Interests,
		Experience:          d.Experience,
		Languages:           d.Languages,
		Resume:              d.Resume,
		Role:                user.Role(d.Role),
		ResetTokenHash:      d.ResetPasswordToken,
		ResetTokenExpiresAt: d.ResetPasswordExpires,
		LastLogin:           d.LastLogin.UTC(),
		LastLogout:          d.LastLogout,
		CreatedAt:           d.CreatedAt.UTC(),
		UpdatedAt:           d.UpdatedAt.UTC(),
	}

	if u.Role == "" {
		u.Role = user.RoleUser
	}
	if u.Education == nil {
		u.Education = []user.Education{}
	}
	if u.Skills == nil {
		u.Skills = []user.Skill{}
	}
	if u.Interests == nil {
		u.Interests = []string{}
	}
	if u.Experience == nil {
		u.Experience = []string{}
	}
	if u.Languages == nil {
		u.Languages = []string{}
	}
	return u
}

type UsersRepo struct {
	coll *mongo.Collection
	prom *observability.Prom
}

func NewUsersRepo(coll *mongo.Collection, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{coll: coll, prom: prom}
}

// OpenUsersRepo binds the repo to the users collection of database and ensures its indexes.
func OpenUsersRepo(ctx context.Context, database *mongo.Database, prom *observability.Prom) (*UsersRepo, error) {
	repo := NewUsersRepo(database.Collection(UsersCollection), prom)
	if err := repo.EnsureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}
	return repo, nil
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

// EnsureIndexes creates the unique email index and the reset-token lookup index.
func (r *UsersRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_email"),
		},
		{
			Keys:    bson.D{{Key: fieldResetToken, Value: 1}},
			Options: options.Index().SetSparse(true).SetName(fieldResetToken),
		},
	})
	return err
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	doc := toDoc(u)
	doc.ID = primitive.NewObjectID()

	err := r.observe("users.create", func() error {
		_, err := r.coll.InsertOne(ctx, doc)
		return err
	})

	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return user.User{}, user.ErrEmailTaken
		}
		return user.User{}, err
	}

	return doc.toUser(), nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return user.User{}, user.ErrUserNotFound
	}

	return r.findOne(ctx, "users.get_by_id", bson.M{"_id": oid})
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return r.findOne(ctx, "users.get_by_email", bson.M{"email": email})
}

func (r *UsersRepo) findOne(ctx context.Context, op string, filter bson.M) (user.User, error) {
	var doc userDoc

	err := r.observe(op, func() error {
		return r.coll.FindOne(ctx, filter).Decode(&doc)
	})

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return user.User{}, user.ErrUserNotFound
		}
		return user.User{}, err
	}
	return doc.toUser(), nil
}

// profileSet maps the whitelisted profile fields onto a $set document.
func profileSet(upd user.ProfileUpdate, now time.Time) bson.M {
	set := bson.M{fieldUpdatedAt: now}

	if upd.Name != nil {
		set["name"] = *upd.Name
	}
	if upd.Phone != nil {
		set["phone"] = *upd.Phone
	}
	if upd.Age != nil {
		set["age"] = *upd.Age
	}
	if upd.Country != nil {
		set["country"] = *upd.Country
	}
	if upd.Education != nil {
		set["education"] = *upd.Education
	}
	if upd.Skills != nil {
		set[fieldSkills] = *upd.Skills
	}
	if upd.Interests != nil {
		set[fieldInterests] = *upd.Interests
	}
	if upd.Experience != nil {
		set[fieldExperience] = *upd.Experience
	}
	if upd.Languages != nil {
		set[fieldLanguages] = *upd.Languages
	}
	if upd.Resume != nil {
		set[fieldResume] = *upd.Resume
	}
	return set
}

func (r *UsersRepo) UpdateProfile(ctx context.Context, id string, upd user.ProfileUpdate, now time.Time) (user.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return user.User{}, user.ErrUserNotFound
	}

	var doc userDoc
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	err = r.observe("users.update_profile", func() error {
		return r.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": profileSet(upd, now)}, opts).Decode(&doc)
	})

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return user.User{}, user.ErrUserNotFound
		}
		return user.User{}, err
	}
	return doc.toUser(), nil
}

func (r *UsersRepo) UpdatePassword(ctx context.Context, id, passwordHash string, now time.Time) error {
	return r.updateOne(ctx, "users.update_password", id, bson.M{"$set": bson.M{
		fieldPassword:  passwordHash,
		fieldUpdatedAt: now,
	}})
}

func (r *UsersRepo) SetLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.updateOne(ctx, "users.set_last_login", id, bson.M{"$set": bson.M{
		fieldLastLogin: at,
		fieldUpdatedAt: at,
	}})
}

func (r *UsersRepo) SetLastLogout(ctx context.Context, id string, at time.Time) error {
	return r.updateOne(ctx, "users.set_last_logout", id, bson.M{"$set": bson.M{
		fieldLastLogout: at,
		fieldUpdatedAt:  at,
	}})
}

func (r *UsersRepo) SaveResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	return r.updateOne(ctx, "users.save_reset_token", userID, bson.M{"$set": bson.M{
		fieldResetToken:   tokenHash,
		fieldResetExpires: expiresAt,
	}})
}

func (r *UsersRepo) updateOne(ctx context.Context, op, id string, update bson.M) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return user.ErrUserNotFound
	}

	var res *mongo.UpdateResult

	err = r.observe(op, func() error {
		res, err = r.coll.UpdateOne(ctx, bson.M{"_id": oid}, update)
		return err
	})

	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return user.ErrUserNotFound
	}
	return nil
}

// ConsumeResetToken finds a live token and unsets it in the same findAndModify.
func (r *UsersRepo) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time) (string, error) {
	filter := bson.M{
		fieldResetToken:   tokenHash,
		fieldResetExpires: bson.M{"$gt": now},
	}
	update := bson.M{"$unset": bson.M{
		fieldResetToken:   "",
		fieldResetExpires: "",
	}}
	opts := options.FindOneAndUpdate().SetProjection(bson.M{"_id": 1})

	var doc struct {
		ID primitive.ObjectID `bson:"_id"`
	}

	err := r.observe("users.consume_reset_token", func() error {
		return r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	})

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", user.ErrResetTokenNotFound
		}
		return "", err
	}
	return doc.ID.Hex(), nil
}

func (r *UsersRepo) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return user.ErrUserNotFound
	}

	var res *mongo.DeleteResult

	err = r.observe("users.delete", func() error {
		res, err = r.coll.DeleteOne(ctx, bson.M{"_id": oid})
		return err
	})

	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return user.ErrUserNotFound
	}
	return nil
}

func (r *UsersRepo) Ping(ctx context.Context) error {
	return r.coll.Database().Client().Ping(ctx, readpref.Primary())
}
