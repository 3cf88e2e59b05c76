// Package mongostore persists the booking data in MongoDB.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/harentsoaR/dentist-booking/internal/models"
	"github.com/harentsoaR/dentist-booking/internal/store"
)

const (
	usersCollection        = "users"
	patientsCollection     = "patients"
	appointmentsCollection = "appointments"
)

// IDSource hands out numeric document ids; MongoDB has no sequences.
type IDSource interface {
	Next() int64
}

type Storage struct {
	client *mongo.Client
	db     *mongo.Database
	ids    IDSource
}

// Connect dials the server and verifies the connection with a ping.
func Connect(ctx context.Context, uri, database string, ids IDSource) (*Storage, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return New(client, client.Database(database), ids), nil
}

func New(client *mongo.Client, db *mongo.Database, ids IDSource) *Storage {
	return &Storage{client: client, db: db, ids: ids}
}

func (s *Storage) Users() store.Users               { return userRepo{s.db.Collection(usersCollection), s.ids} }
func (s *Storage) Patients() store.Patients         { return patientRepo{s.db.Collection(patientsCollection), s.ids} }
func (s *Storage) Appointments() store.Appointments { return appointmentRepo{s} }

// Migrate creates the indexes the queries rely on.
func (s *Storage) Migrate(ctx context.Context) error {
	_, err := s.db.Collection(usersCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "role", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("users indexes: %w", err)
	}
	_, err = s.db.Collection(appointmentsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "scheduledDate", Value: 1}}},
		{Keys: bson.D{{Key: "staffId", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("appointments indexes: %w", err)
	}
	return nil
}

func (s *Storage) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNotFound
	}
	return err
}

// --- users ---

type userRepo struct {
	coll *mongo.Collection
	ids  IDSource
}

func (r userRepo) FindByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	err := r.coll.FindOne(ctx, bson.M{"email": email}).Decode(&u)
	return u, notFound(err)
}

func (r userRepo) FindByID(ctx context.Context, id int64) (models.User, error) {
	var u models.User
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	return u, notFound(err)
}

func (r userRepo) Create(ctx context.Context, u models.User) (models.User, error) {
	u.ID = r.ids.Next()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	if _, err := r.coll.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.User{}, store.ErrDuplicate
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (r userRepo) List(ctx context.Context) ([]models.User, error) {
	cursor, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	defer cursor.Close(ctx)

	users := make([]models.User, 0)
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return users, nil
}

func (r userRepo) CountByRole(ctx context.Context, role models.Role) (int64, error) {
	return r.coll.CountDocuments(ctx, bson.M{"role": role})
}

func (r userRepo) UpdateRole(ctx context.Context, id int64, role models.Role) (models.User, error) {
	var u models.User
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"role": role}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&u)
	return u, notFound(err)
}

// --- patients ---

type patientRepo struct {
	coll *mongo.Collection
	ids  IDSource
}

func (r patientRepo) Create(ctx context.Context, p models.Patient) (models.Patient, error) {
	p.ID = r.ids.Next()
	if _, err := r.coll.InsertOne(ctx, p); err != nil {
		return models.Patient{}, fmt.Errorf("insert patient: %w", err)
	}
	return p, nil
}

func (r patientRepo) FindByID(ctx context.Context, id int64) (models.Patient, error) {
	var p models.Patient
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	return p, notFound(err)
}

// --- appointments ---

type appointmentRepo struct{ s *Storage }

func (r appointmentRepo) coll() *mongo.Collection {
	return r.s.db.Collection(appointmentsCollection)
}

func (r appointmentRepo) Create(ctx context.Context, a models.Appointment) (models.Appointment, error) {
	a.ID = r.s.ids.Next()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if _, err := r.coll().InsertOne(ctx, a); err != nil {
		return models.Appointment{}, fmt.Errorf("insert appointment: %w", err)
	}
	return r.joinOne(ctx, a)
}

func (r appointmentRepo) FindByID(ctx context.Context, id int64) (models.Appointment, error) {
	var a models.Appointment
	if err := r.coll().FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		return models.Appointment{}, notFound(err)
	}
	return r.joinOne(ctx, a)
}

func (r appointmentRepo) List(ctx context.Context) ([]models.Appointment, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "scheduledDate", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.coll().Find(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, fmt.Errorf("find appointments: %w", err)
	}
	defer cursor.Close(ctx)

	appointments := make([]models.Appointment, 0)
	if err := cursor.All(ctx, &appointments); err != nil {
		return nil, fmt.Errorf("decode appointments: %w", err)
	}
	if err := r.join(ctx, appointments); err != nil {
		return nil, err
	}
	return appointments, nil
}

// Update runs the guard and the write as one FindOneAndUpdate so that two
// dentists racing for the same appointment cannot both win.
func (r appointmentRepo) Update(ctx context.Context, id int64, upd store.AppointmentUpdate) (models.Appointment, error) {
	filter := bson.M{"_id": id}
	switch upd.Guard.Kind {
	case store.GuardUnassigned:
		filter["staffId"] = nil
	case store.GuardUnassignedOrOwner:
		filter["$or"] = bson.A{bson.M{"staffId": nil}, bson.M{"staffId": upd.Guard.OwnerID}}
	}

	set := bson.M{}
	if upd.Status != nil {
		set["status"] = *upd.Status
	}
	if upd.Notes != nil {
		set["notes"] = *upd.Notes
	}
	if upd.FollowUpNeeded != nil {
		set["followUpNeeded"] = *upd.FollowUpNeeded
	}
	if upd.AssignStaffID != nil {
		set["staffId"] = *upd.AssignStaffID
	}

	var a models.Appointment
	var err error
	if len(set) == 0 {
		err = r.coll().FindOne(ctx, filter).Decode(&a)
	} else {
		err = r.coll().FindOneAndUpdate(ctx, filter, bson.M{"$set": set},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&a)
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		n, countErr := r.coll().CountDocuments(ctx, bson.M{"_id": id})
		if countErr != nil {
			return models.Appointment{}, fmt.Errorf("count appointment: %w", countErr)
		}
		if n == 0 {
			return models.Appointment{}, store.ErrNotFound
		}
		return models.Appointment{}, store.ErrPreconditionFailed
	}
	if err != nil {
		return models.Appointment{}, fmt.Errorf("update appointment: %w", err)
	}
	return r.joinOne(ctx, a)
}

func (r appointmentRepo) joinOne(ctx context.Context, a models.Appointment) (models.Appointment, error) {
	list := []models.Appointment{a}
	if err := r.join(ctx, list); err != nil {
		return models.Appointment{}, err
	}
	return list[0], nil
}

// join fills Patient and Staff with two $in lookups.
func (r appointmentRepo) join(ctx context.Context, appointments []models.Appointment) error {
	if len(appointments) == 0 {
		return nil
	}
	patientIDs := make([]int64, 0, len(appointments))
	staffIDs := make([]int64, 0)
	for _, a := range appointments {
		patientIDs = append(patientIDs, a.PatientID)
		if a.StaffID != nil {
			staffIDs = append(staffIDs, *a.StaffID)
		}
	}

	patients := make(map[int64]models.Patient)
	cursor, err := r.s.db.Collection(patientsCollection).Find(ctx, bson.M{"_id": bson.M{"$in": patientIDs}})
	if err != nil {
		return fmt.Errorf("find patients: %w", err)
	}
	var ps []models.Patient
	if err := cursor.All(ctx, &ps); err != nil {
		return fmt.Errorf("decode patients: %w", err)
	}
	for _, p := range ps {
		patients[p.ID] = p
	}

	staff := make(map[int64]models.User)
	if len(staffIDs) > 0 {
		cursor, err := r.s.db.Collection(usersCollection).Find(ctx, bson.M{"_id": bson.M{"$in": staffIDs}})
		if err != nil {
			return fmt.Errorf("find staff: %w", err)
		}
		var us []models.User
		if err := cursor.All(ctx, &us); err != nil {
			return fmt.Errorf("decode staff: %w", err)
		}
		for _, u := range us {
			staff[u.ID] = u
		}
	}

	for i := range appointments {
		if p, ok := patients[appointments[i].PatientID]; ok {
			appointments[i].Patient = &p
		}
		if appointments[i].StaffID != nil {
			if u, ok := staff[*appointments[i].StaffID]; ok {
				appointments[i].Staff = u.Summary()
			}
		}
	}
	return nil
}
