package internal

import "ocpinode/models"

type Database interface {
	WriteLogMessage(data Data) error
	ReadLog() (interface{}, error)
	SaveParty(party *models.RemoteParty) error
	DeleteParty(id string) error
	GetParties() ([]*models.RemoteParty, error)
	SaveObject(obj *models.SyncObject) error
	DeleteObject(obj *models.SyncObject) error
	GetObjects() ([]*models.SyncObject, error)
}

type Data interface {
	DataType() string
}
