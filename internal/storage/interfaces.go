package storage

// UserRepository handles user data operations.
type UserRepository interface {
	UpsertUser(user User) error
	GetUser(userID int64) (*User, error)
	GetAllUsers() ([]User, error)
	PurgeUser(userID int64) error
}

// DeliveryRepository records finished download jobs.
type DeliveryRepository interface {
	RecordDelivery(d Delivery) error
	GetUserStats(userID int64) (UserStats, error)
	GetRecentDeliveries(userID int64, limit int) ([]Delivery, error)
}

// MaintenanceRepository handles database housekeeping.
type MaintenanceRepository interface {
	GetDBSize() (int64, error)
	GetTableSizes() ([]TableSize, error)
	CleanupDeliveries(keepPerUser int) (int64, error)
}

// Storage is everything the bot needs from persistence.
type Storage interface {
	UserRepository
	DeliveryRepository
	MaintenanceRepository
	Close() error
}

var _ Storage = (*SQLiteStore)(nil)
