package models

// Patient is a contact record created with each booking. It has no login.
type Patient struct {
	ID        int64  `bson:"_id" db:"id" json:"id"`
	FirstName string `bson:"firstName" db:"first_name" json:"firstName"`
	LastName  string `bson:"lastName" db:"last_name" json:"lastName"`
	Email     string `bson:"email" db:"email" json:"email"`
}
