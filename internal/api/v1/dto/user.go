package dto

// ProfileUpdateRequest is used for incoming profile updates.
type ProfileUpdateRequest struct {
	Bio      string `json:"bio" validate:"max=2000"`
	Website  string `json:"website" validate:"omitempty,url"`
	Location string `json:"location" validate:"max=200"`
	Company  string `json:"company" validate:"max=200"`
	JobTitle string `json:"job_title" validate:"max=200"`
}

// AvatarUploadResponse carries the presigned PUT URL and the object key
// stored on the account.
type AvatarUploadResponse struct {
	UploadURL string `json:"upload_url"`
	Key       string `json:"key"`
}
