package httperror

const (
	Code400_0 = "400_0" // Invalid request body.
	Code400_1 = "400_1" // The tenant header is missing or invalid.
	Code400_2 = "400_2" // Invalid realm.
	Code401_0 = "401_0" // Not authorized.
	Code401_1 = "401_1" // The token was revoked.
	Code404_0 = "404_0" // The tenant has no registered route.
	Code404_1 = "404_1" // The tenant does not exist.
	Code409_0 = "409_0" // A tenant with this realm already exists.
	Code409_1 = "409_1" // The tenant can't move to the requested status.
	Code500_0 = "500_0" // An internal error occurred while processing this request.
	Code500_1 = "500_1" // Cannot retrieve the tenant from the context.
	Code503_0 = "503_0" // The tenant workflow could not be started.
)
