package e2e

import (
	"testing"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// E2ETestSuite provides a test suite for end-to-end tests
type E2ETestSuite struct {
	suite.Suite
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
	expect  playwright.PlaywrightAssertions
}

// SetupSuite runs once before all tests
func (suite *E2ETestSuite) SetupSuite() {
	pw, err := playwright.Run()
	require.NoError(suite.T(), err, "could not launch playwright")
	suite.pw = pw

	browser, err := pw.Chromium.Launch()
	require.NoError(suite.T(), err, "could not launch chromium")
	suite.browser = browser

	suite.expect = playwright.NewPlaywrightAssertions()
}

// TearDownSuite runs once after all tests
func (suite *E2ETestSuite) TearDownSuite() {
	if suite.browser != nil {
		suite.browser.Close()
	}
	if suite.pw != nil {
		suite.pw.Stop()
	}
}

// SetupTest runs before each test
func (suite *E2ETestSuite) SetupTest() {
	page, err := suite.browser.NewPage()
	require.NoError(suite.T(), err, "could not create page")
	suite.page = page

	_, err = suite.page.Goto(appURL)
	require.NoError(suite.T(), err, "could not navigate to app")
}

// TearDownTest runs after each test
func (suite *E2ETestSuite) TearDownTest() {
	if suite.page != nil {
		suite.page.Close()
	}
}

func (suite *E2ETestSuite) login(email, password string) {
	_, err := suite.page.Goto(appURL + "/login")
	require.NoError(suite.T(), err, "could not open login page")

	// Wait for login form
	err = suite.expect.Locator(suite.page.Locator(".login-form")).ToBeVisible()
	require.NoError(suite.T(), err, "login form not visible")

	// Fill in credentials
	err = suite.page.Locator("input[name=email]").Fill(email)
	require.NoError(suite.T(), err, "failed to fill email")

	err = suite.page.Locator("input[name=password]").Fill(password)
	require.NoError(suite.T(), err, "failed to fill password")

	// Submit login
	err = suite.page.Locator(".login-btn").Click()
	require.NoError(suite.T(), err, "failed to click login")

	// Wait for redirect to the dashboard
	err = suite.expect.Locator(suite.page.Locator(".dashboard-screen")).ToBeVisible()
	require.NoError(suite.T(), err, "did not redirect to dashboard after login")
}

func (suite *E2ETestSuite) TestLandingPage() {
	err := suite.expect.Locator(suite.page.Locator(".landing-screen")).ToBeVisible()
	require.NoError(suite.T(), err, "landing page not shown to anonymous visitors")
}

func (suite *E2ETestSuite) TestWrongPasswordIsRejected() {
	_, err := suite.page.Goto(appURL + "/login")
	require.NoError(suite.T(), err)

	require.NoError(suite.T(), suite.page.Locator("input[name=email]").Fill(adminEmail))
	require.NoError(suite.T(), suite.page.Locator("input[name=password]").Fill("wrong"))
	require.NoError(suite.T(), suite.page.Locator(".login-btn").Click())

	err = suite.expect.Locator(suite.page.Locator(".error")).ToHaveText("Invalid email or password")
	require.NoError(suite.T(), err, "login error not shown")
}

func (suite *E2ETestSuite) TestSignupThenLogin() {
	_, err := suite.page.Goto(appURL + "/signup")
	require.NoError(suite.T(), err)

	require.NoError(suite.T(), suite.page.Locator("input[name=username]").Fill("newcomer"))
	require.NoError(suite.T(), suite.page.Locator("input[name=email]").Fill("newcomer@example.com"))
	require.NoError(suite.T(), suite.page.Locator("input[name=password]").Fill("newpass123"))
	require.NoError(suite.T(), suite.page.Locator(".signup-btn").Click())

	err = suite.expect.Locator(suite.page.Locator(".flash")).ToHaveText("Account created successfully!")
	require.NoError(suite.T(), err, "signup flash not shown")

	suite.login("newcomer@example.com", "newpass123")
}

func (suite *E2ETestSuite) TestCompleteUserFlow() {
	// Login
	suite.login(adminEmail, adminPassword)

	// Verify dashboard
	err := suite.expect.Locator(suite.page.Locator(".summary small")).ToHaveText("Spent this month")
	require.NoError(suite.T(), err, "dashboard assertion failed")

	// Wait for form
	form := suite.page.Locator("#expense-form")
	err = suite.expect.Locator(form).ToBeVisible()
	require.NoError(suite.T(), err, "expense form not visible")

	// Fill the expense; the date input defaults to today
	require.NoError(suite.T(), form.Locator("input[name=name]").Fill("Lunch Test"), "failed to fill name")
	require.NoError(suite.T(), form.Locator("input[name=cost]").Fill("12.50"), "failed to fill cost")
	require.NoError(suite.T(), form.Locator("input[name=category]").Fill("Food"), "failed to fill category")

	// Submit
	err = form.Locator("button.submit").Click()
	require.NoError(suite.T(), err, "failed to submit expense")

	err = suite.expect.Locator(suite.page.Locator("#toast")).ToHaveText("Expense added successfully! Categorized as Food")
	require.NoError(suite.T(), err, "confirmation not shown")

	// Verify in list - wait for the expense item to appear
	items := suite.page.Locator(".expense-item", playwright.PageLocatorOptions{HasText: "Lunch Test"})
	err = suite.expect.Locator(items).ToHaveCount(1)
	require.NoError(suite.T(), err, "expense item count mismatch")

	item := items.First()
	err = suite.expect.Locator(item.Locator(".expense-details strong")).ToHaveText("Lunch Test")
	require.NoError(suite.T(), err, "name mismatch")

	err = suite.expect.Locator(item.Locator(".expense-amount")).ToContainText("12.50")
	require.NoError(suite.T(), err, "amount mismatch")
}

func (suite *E2ETestSuite) TestBlankCategoryFallsBack() {
	suite.login(adminEmail, adminPassword)

	form := suite.page.Locator("#expense-form")
	require.NoError(suite.T(), form.Locator("input[name=name]").Fill("Mystery box"))
	require.NoError(suite.T(), form.Locator("input[name=cost]").Fill("3"))
	require.NoError(suite.T(), form.Locator("button.submit").Click())

	err := suite.expect.Locator(suite.page.Locator("#toast")).ToHaveText("Expense added successfully! Categorized as Uncategorized")
	require.NoError(suite.T(), err, "fallback category not reported")
}

// TestE2ESuite runs the e2e test suite
func TestE2ESuite(t *testing.T) {
	suite.Run(t, new(E2ETestSuite))
}
