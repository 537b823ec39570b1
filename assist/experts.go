package assist

import (
	"github.com/lbatt/ledgersync/store"
	"google.golang.org/genai"
)

func newFacilitator(experts ...*Expert) *Expert {
	return &Expert{
		Name:      "Facilitator",
		ModelName: model,
		Config: &genai.GenerateContentConfig{
			Tools: []*genai.Tool{
				{FunctionDeclarations: NewDeclarations(experts)},
			},
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: `
			As a facilitator you are in charge of the conversation and solving the user's request.

			Learn about the expert's skills from the Tools and ask them questions.
			They are at your service and 100% dedicated to you, they keep context of your previous questions.

			The user is here primarily to get information about his bank connections,
			account balances and transactions, and whether his data is up to date.

			Devise a plan of questions to ask each expert and come up with the best
			response to the user's request.
		`}}},
		},
		Library: NewLibrary(experts),
	}
}

// NewBookkeeper creates the expert in charge of reading the local store:
// connections, balance snapshots and transaction history.
func NewBookkeeper(st store.Storage) *Expert {
	lib := NewFunctions(st)
	return &Expert{
		Name: "Bookkeeper",
		Description: `This is the Bookkeeper. He is in charge of reading the user's local store of
		synchronized financial data. He can list the configured bank connections with their sync
		status, and report the balances and transaction history of any account.`,
		ModelName: model,
		Config: &genai.GenerateContentConfig{
			Tools: []*genai.Tool{
				{FunctionDeclarations: NewDeclarations(lib)},
			},
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: `
				You are a bookkeeper in charge of the user's synchronized financial data.
				You know how to use the Tools to extract relevant information about the
				user's connections, accounts, balances and transactions.
				You are part of a team of experts; yours is everything about the local
				store. They might ask you questions in approximative language, figure out
				what they meant.

				Use the available tools to get
				  - the list of connections and their sync status
				  - the latest balances of an account
				  - the transaction history of an account
			`}}},
		},
		Library: NewLibrary(lib),
	}
}

// NewAnalyst creates the expert grounded on web search, for questions about
// markets, institutions and recent news.
func NewAnalyst() *Expert {
	return &Expert{
		Name: "Analyst",
		Description: `This is an expert financial analyst,
		very well aware of financial products and institutions,
		and of the latest news about funds and companies.
		Ask the Analyst whenever you need recent or grounding information.`,
		ModelName: model,
		Config: &genai.GenerateContentConfig{
			Tools: []*genai.Tool{
				{GoogleSearch: &genai.GoogleSearch{}},
			},
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: `
			You are an expert in finance, you can search and find about anything related
			to financial institutions, companies, markets, funds etc. You leverage Google
			Search to ground your assertions in a solid truth.
			You can get the latest news too, and you know how to relate them to the
			user's request.
				`}}},
		},
	}
}
