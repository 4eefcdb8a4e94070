package extract

// systemInstruction is sent verbatim; the reply format it asks for is what attribute.Parse expects.
const systemInstruction = "You are a helpful assistant. Provide a response in a simple and structured format " +
	"suitable for processing by a program. " +
	"Only return a list of book genres, themes, authors, and tags that are relevant to a user's request, " +
	"as comma-separated values. " +
	"No need to return the response like so: Genres: Fantasy\nThemes: Formula One, Racing, Motorsport\n" +
	"Authors: N/A\nTags: Sports Fantasy, Racing, Magical Realism, Car Racing, Motorsport Fantasy " +
	"But rather like so: Fantasy, Formula One, Racing, Motorsport, Sports Fantasy, Racing, Magical Realism, " +
	"Car Racing, Motorsport Fantasy. " +
	"Do not return N/A or Not available, simply return nothing"

// Stage is the completion stage label for extraction calls.
const Stage = "extract"
